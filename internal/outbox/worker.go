package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Source interface {
	NextBatch(ctx context.Context, limit int) ([]Row, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

type PublishFunc func(ctx context.Context, topic string, key, value []byte) error

// Worker drains unsent rows to the broker. A row is marked sent only
// after the publish returned without error; failures bump the attempt
// counter and the row is retried on a later pass with growing delay.
type Worker struct {
	Source    Source
	Publish   PublishFunc
	Logger    *zap.Logger
	Interval  time.Duration
	BatchSize int
}

func (w *Worker) interval() time.Duration {
	if w.Interval > 0 {
		return w.Interval
	}
	return time.Second
}

func (w *Worker) batchSize() int {
	if w.BatchSize > 0 {
		return w.BatchSize
	}
	return 100
}

func (w *Worker) Run(ctx context.Context) {
	t := time.NewTicker(w.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.Drain(ctx); err != nil {
				w.Logger.Warn("outbox drain", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch. Rows that failed before wait out a backoff
// window, measured from the last attempt so the delay holds no matter
// how old the row is.
func (w *Worker) Drain(ctx context.Context) error {
	batch, err := w.Source.NextBatch(ctx, w.batchSize())
	if err != nil {
		return err
	}
	now := time.Now()
	for _, r := range batch {
		if wait := backoff(r.Attempts); wait > 0 && now.Sub(r.LastAttempt) < wait {
			continue
		}
		if err := w.Publish(ctx, r.Topic, r.Key, r.Payload); err != nil {
			w.Logger.Warn("outbox publish",
				zap.String("id", r.ID),
				zap.String("topic", r.Topic),
				zap.Int("attempts", r.Attempts),
				zap.Error(err))
			if err := w.Source.MarkFailed(ctx, r.ID); err != nil {
				return err
			}
			continue
		}
		if err := w.Source.MarkSent(ctx, r.ID); err != nil {
			return err
		}
	}
	return nil
}

func backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := time.Second << uint(attempts-1)
	if d > time.Minute {
		return time.Minute
	}
	return d
}
