package jobs

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, run *catalog.JobRun) (*catalog.JobRun, error)
	Finish(dbc dbctx.Context, id string, status string, stats datatypes.JSON, errMsg string, finishedAt time.Time) error
	GetByID(dbc dbctx.Context, id string) (*catalog.JobRun, error)
	// ListRecent returns newest first. An empty jobType matches all types.
	ListRecent(dbc dbctx.Context, jobType string, limit int) ([]*catalog.JobRun, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, run *catalog.JobRun) (*catalog.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *jobRunRepo) Finish(dbc dbctx.Context, id string, status string, stats datatypes.JSON, errMsg string, finishedAt time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": finishedAt,
		"error":       errMsg,
	}
	if len(stats) > 0 {
		updates["stats"] = stats
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&catalog.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id string) (*catalog.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var run catalog.JobRun
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == "" {
		return nil, nil
	}
	return &run, nil
}

func (r *jobRunRepo) ListRecent(dbc dbctx.Context, jobType string, limit int) ([]*catalog.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := transaction.WithContext(dbc.Ctx).Order("started_at DESC").Limit(limit)
	if jobType != "" {
		q = q.Where("job_type = ?", jobType)
	}
	var out []*catalog.JobRun
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
