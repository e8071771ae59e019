package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kay/internal/clock"
	obsmetrics "github.com/smallbiznis/kay/internal/observability/metrics"
	quotationdomain "github.com/smallbiznis/kay/internal/quotation/domain"
	"github.com/smallbiznis/kay/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireQuotations = "expire_quotations"

	lockKeyPrefix = "kay:scheduler:lock:"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	QuotationSvc quotationdomain.Service
	Locker       *ratelimit.Locker      `optional:"true"`
	Metrics      *obsmetrics.JobMetrics `optional:"true"`
	Config       Config                 `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	quotationSvc quotationdomain.Service
	locker       *ratelimit.Locker
	metrics      *obsmetrics.JobMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.QuotationSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		quotationSvc: p.QuotationSvc,
		locker:       p.Locker,
		metrics:      p.Metrics,
	}, nil
}

// runJob executes fn under a timeout. When a locker is configured only one
// replica runs a given job at a time; the others skip it.
func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context, run *jobRun) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, lockKeyPrefix+name, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("scheduler lock unavailable", zap.String("job", name), zap.Error(err))
			return nil
		}
		if !ok {
			s.metrics.IncSkipped(name)
			s.log.Debug("scheduler job held elsewhere", zap.String("job", name))
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lockKeyPrefix+name, token); err != nil {
				s.log.Warn("scheduler lock release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)
	s.metrics.IncRun(name)

	err := fn(ctx, run)
	s.metrics.ObserveDuration(name, s.clock.Now().Sub(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncError(name)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	jobs := []struct {
		Name string
		Run  func(ctx context.Context, run *jobRun) error
	}{
		{JobExpireQuotations, s.ExpireQuotationsJob},
	}

	var err error
	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty means every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ExpireQuotationsJob persists the expired status for quotations past their
// validity date so list filters and stats agree with the effective status.
func (s *Scheduler) ExpireQuotationsJob(ctx context.Context, run *jobRun) error {
	expired, err := s.quotationSvc.ExpireStale(ctx)
	if err != nil {
		return err
	}
	run.AddProcessed(int(expired))
	return nil
}
