package scheduler

import (
	"context"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

const (
	DefaultRecommendationSchedule = "1 0 * * *"
	DefaultBestsellerSchedule     = "@monthly"
)

func RecommendationSweepJob(schedule string, sweep services.RecommendationSweep) Job {
	if schedule == "" {
		schedule = DefaultRecommendationSchedule
	}
	return Job{
		Type:     catalog.JobTypeRecommendationSweep,
		Schedule: schedule,
		Run: func(ctx context.Context) (any, error) {
			return sweep.Run(ctx)
		},
	}
}

func BestsellerIngestJob(schedule string, ingest services.BestsellerIngest) Job {
	if schedule == "" {
		schedule = DefaultBestsellerSchedule
	}
	return Job{
		Type:     catalog.JobTypeBestsellerIngest,
		Schedule: schedule,
		Run: func(ctx context.Context) (any, error) {
			return ingest.Run(ctx)
		},
	}
}
