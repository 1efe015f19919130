package catalog

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobTypeRecommendationSweep = "recommendation_sweep"
	JobTypeBestsellerIngest    = "bestseller_ingest"
)

const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

const (
	JobTriggerSchedule = "schedule"
	JobTriggerManual   = "manual"
)

type JobRun struct {
	ID         string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	JobType    string         `gorm:"column:job_type;type:varchar(64);not null;index" json:"job_type"`
	Trigger    string         `gorm:"column:trigger_source;type:varchar(16);not null" json:"trigger"`
	Status     string         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	StartedAt  time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Stats      datatypes.JSON `gorm:"column:stats" json:"stats,omitempty"`
	Error      string         `gorm:"column:error;type:text" json:"error,omitempty"`
}

func (JobRun) TableName() string { return "job_runs" }
