package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/deepresearch/internal/state"
)

// ResearchTask is one sub-research topic delegated by the supervisor. ID is
// stable for a given session, round and topic position, so a retried task
// merges over its earlier contribution instead of duplicating it.
type ResearchTask struct {
	ID        string
	SessionID string
	Brief     string
	Topic     string
}

// ResearchResult holds the outcome of one ResearchTask.
type ResearchResult struct {
	Task         ResearchTask
	Contribution state.Contribution
	Err          error
	Duration     time.Duration
}

// FanOut runs research tasks in parallel with bounded concurrency. A failed
// task does not cancel its siblings.
type FanOut struct {
	researcher Researcher
	limit      int
	timeout    time.Duration
	onProgress func(ProgressEvent)
	logger     *zap.Logger
}

// NewFanOut creates a FanOut. onProgress may be nil; it is called from the
// task goroutines.
func NewFanOut(r Researcher, limit int, timeout time.Duration, onProgress func(ProgressEvent), logger *zap.Logger) *FanOut {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FanOut{
		researcher: r,
		limit:      limit,
		timeout:    timeout,
		onProgress: onProgress,
		logger:     logger,
	}
}

// Run dispatches every task and returns their results in task order.
// onResult, when non-nil, sees each result as soon as its task finishes, in
// completion order, and may be called concurrently.
func (f *FanOut) Run(ctx context.Context, tasks []ResearchTask, onResult func(ResearchResult)) []ResearchResult {
	results := make([]ResearchResult, len(tasks))

	var g errgroup.Group
	g.SetLimit(f.limit)

	for _, task := range tasks {
		f.emit(task, ProgressPending, "")
	}

	for i, task := range tasks {
		g.Go(func() error {
			res := f.runOne(ctx, task)
			results[i] = res
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (f *FanOut) runOne(ctx context.Context, task ResearchTask) (res ResearchResult) {
	res.Task = task
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("fanout: researcher panicked on %q: %v", task.Topic, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			f.emit(task, ProgressFailed, res.Err.Error())
			f.logger.Warn("sub-research failed",
				zap.String("session", task.SessionID),
				zap.String("task", task.ID),
				zap.String("topic", task.Topic),
				zap.Duration("duration", res.Duration),
				zap.Error(res.Err))
			return
		}
		f.emit(task, ProgressComplete, "")
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	tctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	f.emit(task, ProgressWorking, "")
	c, err := f.researcher.Research(tctx, task)
	if err != nil {
		res.Err = err
		return res
	}
	if c.Empty() {
		res.Err = fmt.Errorf("fanout: empty contribution for %q", task.Topic)
		return res
	}
	res.Contribution = c
	return res
}

func (f *FanOut) emit(task ResearchTask, status ProgressStatus, msg string) {
	if f.onProgress == nil {
		return
	}
	f.onProgress(ProgressEvent{
		SessionID: task.SessionID,
		Stage:     StageSupervise,
		Section:   task.Topic,
		Status:    status,
		Message:   msg,
	})
}
