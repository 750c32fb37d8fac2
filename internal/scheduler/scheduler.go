package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smartque-backend/internal/logger"
)

const defaultJobTimeout = 30 * time.Second

// Job — периодическая задача обслуживания. Run возвращает число обработанных записей.
type Job struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Scheduler запускает задачи обслуживания по cron расписанию (с секундами).
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
}

// New создаёт планировщик и регистрирует все задачи на одно расписание.
func New(spec string, timeout time.Duration, jobs ...Job) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	cronLogger := cron.PrintfLogger(logger.Component("scheduler"))
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		jobs:    jobs,
		timeout: timeout,
	}

	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("scheduler: некорректное расписание %q: %w", spec, err)
	}

	return s, nil
}

// Start запускает планировщик в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Component("scheduler").WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop останавливает планировщик и ждёт завершения текущих задач, но не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logger.Component("scheduler").Warn("scheduler: задачи не успели завершиться")
	}
}

// RunOnce последовательно выполняет все задачи. Ошибка одной задачи не мешает остальным.
func (s *Scheduler) RunOnce() {
	for _, job := range s.jobs {
		s.run(job)
	}
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	entry := logger.Component("scheduler").WithFields(logrus.Fields{
		"job":      job.Name,
		"affected": n,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("scheduler: задача завершилась с ошибкой")
		return
	}
	if n > 0 {
		entry.Info("scheduler: задача выполнена")
	} else {
		entry.Debug("scheduler: задача выполнена")
	}
}
