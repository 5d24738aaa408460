// Package scheduler runs tasks on cron schedules with context-aware
// shutdown.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and manages task lifecycle with context support.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	tasks  map[string]*scheduledTask
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// scheduledTask tracks a task and its cron entry.
type scheduledTask struct {
	task      Task
	runner    Runner
	entryID   cron.EntryID
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	lastError string
}

// New creates a new Scheduler. Cancelling ctx cancels running tasks.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	schedCtx, cancel := context.WithCancel(ctx)

	cronLogger := &cronSlogAdapter{logger: logger}

	// An execution that overruns its interval makes the next one skip.
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	return &Scheduler{
		cron:   c,
		ctx:    schedCtx,
		cancel: cancel,
		logger: logger,
		tasks:  make(map[string]*scheduledTask),
	}
}

// Add registers a task. It fails if the ID is taken or the schedule does
// not parse.
func (s *Scheduler) Add(task Task, runner Runner) error {
	if runner == nil {
		return fmt.Errorf("runner cannot be nil")
	}
	if task.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", task.ID)
	}

	schedule, err := ParseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("failed to parse schedule for task %q: %w", task.ID, err)
	}

	entryID := s.cron.Schedule(schedule, s.wrap(task, runner))
	next := schedule.Next(time.Now())

	s.tasks[task.ID] = &scheduledTask{
		task:    task,
		runner:  runner,
		entryID: entryID,
		nextRun: next,
	}

	s.logger.Info("task added to scheduler",
		slog.String("task_id", task.ID),
		slog.String("schedule", task.Schedule),
		slog.Time("next_run", next),
	)

	return nil
}

// wrap turns a Runner into a cron job bound to the scheduler context.
func (s *Scheduler) wrap(task Task, runner Runner) cron.FuncJob {
	return func() {
		s.mu.Lock()
		st, exists := s.tasks[task.ID]
		if !exists {
			s.mu.Unlock()
			return
		}
		st.lastRun = time.Now()
		st.runCount++
		s.mu.Unlock()

		s.wg.Add(1)
		defer s.wg.Done()

		ctx := s.ctx
		if task.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(s.ctx, task.Timeout)
			defer cancel()
		}

		s.logger.Debug("task starting", slog.String("task_id", task.ID))

		start := time.Now()
		err := runner.Run(ctx)
		duration := time.Since(start)

		if err != nil {
			s.logger.Error("task failed",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
				slog.Duration("duration", duration),
			)
		} else {
			s.logger.Info("task completed",
				slog.String("task_id", task.ID),
				slog.Duration("duration", duration),
			)
		}

		s.mu.Lock()
		if st, exists := s.tasks[task.ID]; exists {
			st.lastError = ""
			if err != nil {
				st.lastError = err.Error()
			}
			if entry := s.cron.Entry(st.entryID); entry.ID != 0 {
				st.nextRun = entry.Next
			}
		}
		s.mu.Unlock()
	}
}

// Start begins running tasks on their schedules.
func (s *Scheduler) Start() error {
	s.mu.RLock()
	count := len(s.tasks)
	s.mu.RUnlock()

	if count == 0 {
		s.logger.Warn("starting scheduler with no tasks")
	}

	s.logger.Info("starting scheduler", slog.Int("task_count", count))
	s.cron.Start()

	return nil
}

// Stop cancels running tasks, stops the cron loop and waits for in-flight
// executions to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping scheduler")

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.logger.Info("scheduler stopped")
	return nil
}

// Stats returns statistics for a task.
func (s *Scheduler) Stats(taskID string) (*TaskStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.tasks[taskID]
	if !exists {
		return nil, false
	}
	return s.statsLocked(st), true
}

// ListStats returns statistics for every task, sorted by ID.
func (s *Scheduler) ListStats() []*TaskStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*TaskStats, 0, len(s.tasks))
	for _, st := range s.tasks {
		out = append(out, s.statsLocked(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

func (s *Scheduler) statsLocked(st *scheduledTask) *TaskStats {
	next := st.nextRun
	if entry := s.cron.Entry(st.entryID); entry.ID != 0 && !entry.Next.IsZero() {
		next = entry.Next
	}
	return &TaskStats{
		TaskID:    st.task.ID,
		Schedule:  st.task.Schedule,
		LastRun:   st.lastRun,
		NextRun:   next,
		RunCount:  st.runCount,
		LastError: st.lastError,
	}
}

// cronSlogAdapter adapts slog.Logger to cron.Logger interface.
type cronSlogAdapter struct {
	logger *slog.Logger
}

func (a *cronSlogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a *cronSlogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := make([]any, 0, len(keysAndValues)+1)
	attrs = append(attrs, slog.String("error", err.Error()))
	attrs = append(attrs, keysAndValues...)
	a.logger.Error(msg, attrs...)
}
