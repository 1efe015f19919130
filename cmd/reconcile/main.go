package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/yungbote/bookmatch-backend/internal/app"
)

func main() {
	var repair bool
	flag.BoolVar(&repair, "repair", false, "delete vector records that have no relational book")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	report, err := application.Services.Reconciler.Check(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check drift: %v\n", err)
		os.Exit(1)
	}
	out := map[string]any{"report": report}
	if repair {
		res, err := application.Services.Reconciler.Repair(ctx, report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "repair drift: %v\n", err)
			os.Exit(1)
		}
		out["repair"] = res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
}
