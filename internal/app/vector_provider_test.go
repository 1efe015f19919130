package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

func TestParseVectorProvider(t *testing.T) {
	cases := []struct {
		raw     string
		want    VectorProvider
		wantErr bool
	}{
		{"", VectorProviderLocal, false},
		{"local", VectorProviderLocal, false},
		{" Qdrant ", VectorProviderQdrant, false},
		{"chroma", "", true},
	}
	for _, tc := range cases {
		got, err := ParseVectorProvider(tc.raw)
		if tc.wantErr {
			var cfgErr *VectorProviderConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("ParseVectorProvider(%q): expected *VectorProviderConfigError, got=%v", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseVectorProvider(%q): want=%q got=%q err=%v", tc.raw, tc.want, got, err)
		}
	}
}

func TestOpenVectorStoreLocal(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	vs, err := openVectorStore(context.Background(), log, VectorConfig{
		Provider:   "local",
		LocalDir:   filepath.Join(t.TempDir(), "vectors"),
		Collection: "books",
	})
	if err != nil {
		t.Fatalf("openVectorStore: %v", err)
	}
	defer vs.Close()
	if err := vs.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
