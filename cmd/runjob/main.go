package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yungbote/bookmatch-backend/internal/app"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
)

func main() {
	var jobType string
	flag.StringVar(&jobType, "job", "", "job type to run once ("+catalog.JobTypeRecommendationSweep+" or "+catalog.JobTypeBestsellerIngest+")")
	flag.Parse()
	if strings.TrimSpace(jobType) == "" {
		flag.Usage()
		os.Exit(2)
	}

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

	run, err := application.Scheduler.RunNow(ctx, jobType)
	if run == nil {
		fmt.Fprintf(os.Stderr, "run %s: %v\n", jobType, err)
		os.Exit(1)
	}
	fmt.Printf("%s %s status=%s stats=%s\n", run.JobType, run.ID, run.Status, run.Stats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", jobType, err)
		os.Exit(1)
	}
}
