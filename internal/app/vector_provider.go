package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/bookmatch-backend/internal/platform/localvec"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/qdrant"
	"github.com/yungbote/bookmatch-backend/internal/platform/vectorstore"
)

type VectorProvider string

const (
	VectorProviderLocal  VectorProvider = "local"
	VectorProviderQdrant VectorProvider = "qdrant"
)

type VectorProviderConfigError struct {
	Value string
}

func (e *VectorProviderConfigError) Error() string {
	if e == nil {
		return "invalid vector provider"
	}
	return fmt.Sprintf("invalid VECTOR_PROVIDER=%q; expected one of: local, qdrant", e.Value)
}

// ParseVectorProvider normalizes the configured backend name. Empty means
// local.
func ParseVectorProvider(raw string) (VectorProvider, error) {
	switch v := VectorProvider(strings.ToLower(strings.TrimSpace(raw))); v {
	case "":
		return VectorProviderLocal, nil
	case VectorProviderLocal, VectorProviderQdrant:
		return v, nil
	default:
		return "", &VectorProviderConfigError{Value: raw}
	}
}

func openVectorStore(ctx context.Context, log *logger.Logger, cfg VectorConfig) (vectorstore.Store, error) {
	provider, err := ParseVectorProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	log.Info("Opening vector store", "provider", provider, "collection", cfg.Collection)
	switch provider {
	case VectorProviderQdrant:
		collection := cfg.QdrantCollection
		if strings.TrimSpace(collection) == "" {
			collection = cfg.Collection
		}
		return qdrant.NewVectorStore(ctx, log, qdrant.Config{
			URL:             cfg.QdrantURL,
			APIKey:          cfg.QdrantAPIKey,
			Collection:      collection,
			VectorDim:       cfg.QdrantVectorDim,
			CreateIfMissing: cfg.QdrantCreate,
		})
	default:
		return localvec.Open(log, localvec.Config{Dir: cfg.LocalDir, Collection: cfg.Collection})
	}
}
