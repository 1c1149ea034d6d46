package workers

import (
	"context"
	"time"

	"game-live-system/live"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// RuntimeWorker owns the two periodic triggers that keep live games
// moving: the point tick sweep and the location broadcast. Each job
// passes its own interval as the spread window, so one sweep is ramped
// across exactly the time until the next one starts.
type RuntimeWorker struct {
	manager *live.GameManager
	log     *zap.SugaredLogger
	sched   gocron.Scheduler
}

func NewRuntimeWorker(manager *live.GameManager, log *zap.SugaredLogger) *RuntimeWorker {
	return &RuntimeWorker{manager: manager, log: log}
}

// Start registers the jobs and runs the scheduler until ctx is done.
func (w *RuntimeWorker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	w.sched = sched

	opts := w.manager.Options()

	_, err = sched.NewJob(
		gocron.DurationJob(opts.TickInterval),
		gocron.NewTask(func() {
			if err := w.manager.Tick(ctx, opts.TickInterval); err != nil {
				w.log.Errorw("tick sweep failed", "err", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(opts.BroadcastInterval),
		gocron.NewTask(func() {
			if err := w.manager.BroadcastLocations(ctx, opts.BroadcastInterval, nil); err != nil {
				w.log.Errorw("location broadcast failed", "err", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	w.log.Infof("runtime worker started (tick every %s, broadcast every %s)",
		opts.TickInterval, opts.BroadcastInterval)

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// Stop shuts the scheduler down, waiting briefly for running jobs.
func (w *RuntimeWorker) Stop() {
	if w.sched == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		_ = w.sched.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		w.log.Warn("runtime scheduler shutdown timed out")
	}
	w.log.Info("runtime worker stopped")
}
