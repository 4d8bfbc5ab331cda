package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/lexibloom/lexibloom/internal/websocket"
)

// DefaultSweepInterval is how often the background sweep runs. The sweep is
// only a safety net for players who never trigger a lazy check; read-time
// freshness comes from the lazy path.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper owns the scheduled reconciliation loop. The process supervisor
// starts and stops it; an in-flight tick finishes its statement, it is just
// not rescheduled after Stop.
type Sweeper struct {
	mu         sync.RWMutex
	reconciler *Reconciler
	hub        *websocket.Hub
	interval   time.Duration
	logger     *slog.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewSweeper(r *Reconciler, hub *websocket.Hub, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		reconciler: r,
		hub:        hub,
		interval:   interval,
		logger:     logger,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick runs one sweep over all due rows. Nobody waits on the sweep, so
// transient storage contention is retried here with backoff instead of being
// surfaced.
func (s *Sweeper) tick(ctx context.Context) {
	var sealed int64
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := s.reconciler.FinalizeAllDue(time.Now())
		if err != nil {
			return retry.RetryableError(err)
		}
		sealed = n
		return nil
	})
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}

	if sealed > 0 && s.hub != nil {
		s.hub.Broadcast(websocket.Event{
			Kind:  websocket.KindLedgerFinalized,
			Extra: map[string]any{"count": sealed},
		})
	}
}
