package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron"
	"gorm.io/datatypes"

	"github.com/yungbote/bookmatch-backend/internal/data/repos"
	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/dbctx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

var (
	ErrUnknownJob = errors.New("unknown job type")
	ErrJobRunning = errors.New("job already running")
	ErrStopped    = errors.New("job scheduler stopped")
)

// Job is one batch path fired on a wall-clock schedule. Run returns the stats
// recorded on the job-run row.
type Job struct {
	Type     string
	Schedule string
	Run      func(ctx context.Context) (any, error)
}

type entry struct {
	job      Job
	schedule cron.Schedule
	running  atomic.Bool
}

// Scheduler fires jobs independently of each other. Two different jobs may
// run at the same time; a job whose previous firing is still running is
// skipped.
type Scheduler struct {
	log     *logger.Logger
	runs    repos.JobRunRepo
	metrics *observability.Metrics
	entries map[string]*entry
	now     func() time.Time

	mu       sync.Mutex
	base     context.Context
	stopping bool
	wg       sync.WaitGroup
}

func New(baseLog *logger.Logger, runs repos.JobRunRepo, metrics *observability.Metrics, jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{
		log:     baseLog.With("component", "JobScheduler"),
		runs:    runs,
		metrics: metrics,
		entries: make(map[string]*entry, len(jobs)),
		now:     time.Now,
	}
	for _, j := range jobs {
		if j.Type == "" || j.Run == nil {
			return nil, fmt.Errorf("job %q: type and run func are required", j.Type)
		}
		if _, dup := s.entries[j.Type]; dup {
			return nil, fmt.Errorf("job %q registered twice", j.Type)
		}
		sched, err := cron.ParseStandard(j.Schedule)
		if err != nil {
			return nil, fmt.Errorf("job %q: parse schedule %q: %w", j.Type, j.Schedule, err)
		}
		s.entries[j.Type] = &entry{job: j, schedule: sched}
	}
	return s, nil
}

// Types lists the registered job types in name order.
func (s *Scheduler) Types() []string {
	out := make([]string, 0, len(s.entries))
	for t := range s.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Serve registers every job with a cron runner and blocks until ctx is done.
// Firings in flight are waited for before returning.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.stopping = false
	s.mu.Unlock()

	c := cron.New()
	for _, t := range s.Types() {
		e := s.entries[t]
		c.Schedule(e.schedule, cron.FuncJob(func() {
			if !s.track() {
				return
			}
			defer s.wg.Done()
			if _, err := s.fire(ctx, e, catalog.JobTriggerSchedule); err != nil && !errors.Is(err, ErrJobRunning) {
				s.log.Error("Scheduled job failed", "job_type", e.job.Type, "error", err)
			}
		}))
		s.log.Info("Job scheduled", "job_type", t, "schedule", e.job.Schedule, "next", e.schedule.Next(s.now()))
	}
	c.Start()
	<-ctx.Done()
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	c.Stop()
	s.wg.Wait()
	s.log.Info("Job scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) String() string { return "job-scheduler" }

// track registers a firing with the shutdown wait group. It reports false
// once Serve has begun stopping.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

// Trigger starts a manual firing in the background and returns its job-run
// row while it is still running.
func (s *Scheduler) Trigger(ctx context.Context, jobType string) (*catalog.JobRun, error) {
	e, ok := s.entries[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
	}
	if !s.track() {
		return nil, ErrStopped
	}
	run, err := s.begin(ctx, e, catalog.JobTriggerManual)
	if err != nil {
		s.wg.Done()
		return nil, err
	}
	snapshot := *run

	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	if base == nil {
		base = context.WithoutCancel(ctx)
	}
	go func() {
		defer s.wg.Done()
		_ = s.execute(base, e, run)
	}()
	return &snapshot, nil
}

// RunNow performs a manual firing and blocks until it finishes.
func (s *Scheduler) RunNow(ctx context.Context, jobType string) (*catalog.JobRun, error) {
	e, ok := s.entries[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
	}
	return s.fire(ctx, e, catalog.JobTriggerManual)
}

func (s *Scheduler) Recent(ctx context.Context, jobType string, limit int) ([]*catalog.JobRun, error) {
	if jobType != "" {
		if _, ok := s.entries[jobType]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
		}
	}
	return s.runs.ListRecent(dbctx.Context{Ctx: ctx}, jobType, limit)
}

func (s *Scheduler) fire(ctx context.Context, e *entry, trigger string) (*catalog.JobRun, error) {
	run, err := s.begin(ctx, e, trigger)
	if err != nil {
		return nil, err
	}
	err = s.execute(ctx, e, run)
	return run, err
}

func (s *Scheduler) begin(ctx context.Context, e *entry, trigger string) (*catalog.JobRun, error) {
	if !e.running.CompareAndSwap(false, true) {
		s.log.Warn("Job still running, skipping firing", "job_type", e.job.Type, "trigger", trigger)
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, e.job.Type)
	}
	run := &catalog.JobRun{
		ID:        uuid.NewString(),
		JobType:   e.job.Type,
		Trigger:   trigger,
		Status:    catalog.JobStatusRunning,
		StartedAt: s.now().UTC(),
	}
	if _, err := s.runs.Create(dbctx.Context{Ctx: ctx}, run); err != nil {
		e.running.Store(false)
		return nil, fmt.Errorf("record job run: %w", err)
	}
	return run, nil
}

func (s *Scheduler) execute(ctx context.Context, e *entry, run *catalog.JobRun) (err error) {
	defer e.running.Store(false)
	log := s.log.With("job_type", run.JobType, "job_run_id", run.ID, "trigger", run.Trigger)
	log.Info("Job started")

	var stats any
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job panic", "panic", r)
				err = fmt.Errorf("job %s panicked: %v", run.JobType, r)
			}
		}()
		stats, err = e.job.Run(ctx)
	}()

	finished := s.now().UTC()
	took := finished.Sub(run.StartedAt)
	run.FinishedAt = &finished
	run.Status = catalog.JobStatusSucceeded
	run.Error = ""
	if err != nil {
		run.Status = catalog.JobStatusFailed
		run.Error = err.Error()
	}
	if stats != nil {
		b, mErr := json.Marshal(stats)
		switch {
		case mErr != nil:
			log.Warn("Job stats not serializable", "error", mErr)
		case string(b) != "null":
			run.Stats = datatypes.JSON(b)
		}
	}
	s.metrics.ObserveJobRun(run.JobType, run.Status, took)

	// The row is closed even when the firing context was cancelled mid-run.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if fErr := s.runs.Finish(dbctx.Context{Ctx: finishCtx}, run.ID, run.Status, run.Stats, run.Error, finished); fErr != nil {
		log.Error("Could not close job run", "error", fErr)
	}

	if err != nil {
		log.Error("Job failed", "took", took, "error", err)
		return err
	}
	log.Info("Job finished", "took", took, "stats", string(run.Stats))
	return nil
}
