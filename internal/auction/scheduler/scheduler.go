package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/auction/application"
	"github.com/cristianortiz/harvestAuction/internal/auction/domain"
	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Finalizer is the slice of the auction service the scheduler drives.
type Finalizer interface {
	Finalize(ctx context.Context, cmd application.FinalizeDTO) (*application.ClosureResult, error)
}

// Options tune the retry behavior when a fired closure hits a transient
// storage failure. A lot stuck open past its deadline is worse than a late
// retry, so firing is never silently dropped.
type Options struct {
	RetryBase  time.Duration
	RetryMax   time.Duration
	MaxRetries int
}

func (o *Options) withDefaults() {
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
}

// Scheduler keeps one in-memory timer per open lot with a future deadline
// and funnels every fire into the closure engine. It holds no durable state:
// the ledger store is the single source of truth for "still open", and the
// closure engine's idempotence substitutes for timer cancellation: a timer
// firing after a manual close is just a NoOp.
type Scheduler struct {
	store     domain.LedgerStore
	finalizer Finalizer
	opts      Options

	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store domain.LedgerStore, opts Options) *Scheduler {
	opts.withDefaults()
	return &Scheduler{
		store:  store,
		opts:   opts,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// Attach binds the closure engine. Must happen before Start; it is separate
// from New only because the service and the scheduler reference each other.
func (s *Scheduler) Attach(f Finalizer) {
	s.finalizer = f
}

// Start runs the recovery sweep and arms timers for every open lot with a
// deadline: future deadlines get a timer, past deadlines are finalized
// immediately (the crash-during-downtime case).
func (s *Scheduler) Start(ctx context.Context) error {
	if s.finalizer == nil {
		return fmt.Errorf("scheduler: no finalizer attached")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	lots, err := s.store.ListOpenLotsWithDeadline(s.ctx)
	if err != nil {
		return fmt.Errorf("scheduler: recovery sweep failed: %w", err)
	}

	now := time.Now()
	var overdue, armed int
	for _, lot := range lots {
		if lot.Deadline == nil {
			continue
		}
		if lot.Deadline.After(now) {
			s.Register(lot.ID, *lot.Deadline)
			armed++
		} else {
			overdue++
			s.wg.Add(1)
			go func(id uuid.UUID) {
				defer s.wg.Done()
				s.fire(id)
			}(lot.ID)
		}
	}

	log.Info("Deadline scheduler started",
		zap.Int("timersArmed", armed),
		zap.Int("overdueLots", overdue),
	)
	return nil
}

// Register arms exactly one timer for the lot. Re-registering replaces the
// previous timer, registering a past deadline fires immediately.
func (s *Scheduler) Register(lotID uuid.UUID, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if old, ok := s.timers[lotID]; ok {
		old.Stop()
	}

	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	s.timers[lotID] = time.AfterFunc(d, func() {
		// claim the fire under the lock so Stop's wg.Wait cannot return
		// while this fire is still getting under way
		if !s.beginFire() {
			return
		}
		defer s.wg.Done()
		s.fire(lotID)
	})

	log.Debug("Deadline timer registered",
		zap.String("lotID", lotID.String()),
		zap.Time("deadline", deadline),
	)
}

// beginFire records one in-flight fire, unless Stop has already begun.
func (s *Scheduler) beginFire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// Stop cancels all pending timers and waits for in-flight fires to finish.
// Timer callbacks that land after Stop has begun do nothing.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	log.Info("Deadline scheduler stopped")
}

// fire invokes the closure engine for one lot, retrying transient storage
// failures with exponential backoff. A NoOp result means someone else closed
// the lot first, which is fine.
func (s *Scheduler) fire(lotID uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, lotID)
	s.mu.Unlock()

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := s.opts.RetryBase
	for attempt := 0; ; attempt++ {
		result, err := s.finalizer.Finalize(ctx, application.FinalizeDTO{
			LotID: lotID,
			Actor: domain.ActorSystem,
		})
		if err == nil {
			if result.Finalized {
				log.Info("Deadline closed lot",
					zap.String("lotID", lotID.String()),
					zap.String("status", string(result.Lot.Status)),
					zap.Bool("sold", result.WinningBid != nil),
				)
			} else {
				log.Debug("Deadline fire was a no-op, lot already terminal",
					zap.String("lotID", lotID.String()),
				)
			}
			return
		}

		if !domain.IsRetryable(err) || attempt >= s.opts.MaxRetries {
			log.Error("Deadline close failed permanently",
				zap.String("lotID", lotID.String()),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return
		}

		log.Warn("Deadline close failed, retrying",
			zap.String("lotID", lotID.String()),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.opts.RetryMax {
			backoff = s.opts.RetryMax
		}
	}
}
