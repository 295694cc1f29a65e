// Package scheduler owns the in-memory auto-start timers. Timers are not
// durable; the battle store is the source of truth and Restore re-derives
// them on boot.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pkalnins/arena/internal/battle"
)

// StartFunc performs the start transition for a battle whose scheduled
// instant has arrived.
type StartFunc func(ctx context.Context, battleID uuid.UUID) error

// PendingLister is the slice of the battle store Restore needs.
type PendingLister interface {
	ListPendingAutoStart(ctx context.Context) ([]battle.Battle, error)
}

type Scheduler struct {
	clock clockwork.Clock
	sched gocron.Scheduler

	mu   sync.Mutex
	jobs map[uuid.UUID]uuid.UUID // battle ID -> gocron job ID
}

func New(clock clockwork.Clock) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, err
	}
	sched.Start()

	return &Scheduler{
		clock: clock,
		sched: sched,
		jobs:  make(map[uuid.UUID]uuid.UUID),
	}, nil
}

// Schedule arms the auto-start timer for a battle. Any timer already armed
// for the same battle is replaced, so calling Schedule twice never yields
// two firings. A battle without a scheduled instant just cancels, and one
// that is already due starts immediately (this is also the recovery path
// for downtime that overshot the instant).
func (s *Scheduler) Schedule(b *battle.Battle, fn StartFunc) {
	if b.ScheduledStartAt == nil {
		s.Cancel(b.ID)
		return
	}

	if !b.ScheduledStartAt.After(s.clock.Now()) {
		s.Cancel(b.ID)
		s.fire(b.ID, fn)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if jobID, ok := s.jobs[b.ID]; ok {
		if err := s.sched.RemoveJob(jobID); err != nil {
			slog.Warn("failed to remove stale auto-start job", "battle_id", b.ID, "error", err)
		}
		delete(s.jobs, b.ID)
	}

	battleID := b.ID
	job, err := s.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(*b.ScheduledStartAt)),
		gocron.NewTask(func() {
			s.mu.Lock()
			delete(s.jobs, battleID)
			s.mu.Unlock()

			s.fire(battleID, fn)
		}),
	)
	if err != nil {
		slog.Error("failed to arm auto-start job", "battle_id", b.ID, "error", err)
		return
	}

	s.jobs[b.ID] = job.ID()
}

// Cancel disarms the timer for a battle, if any. Idempotent.
func (s *Scheduler) Cancel(battleID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobID, ok := s.jobs[battleID]
	if !ok {
		return
	}

	if err := s.sched.RemoveJob(jobID); err != nil {
		slog.Warn("failed to remove auto-start job", "battle_id", battleID, "error", err)
	}
	delete(s.jobs, battleID)
}

// Restore re-arms timers from the store. Run once at process start, before
// the system is considered ready.
func (s *Scheduler) Restore(ctx context.Context, store PendingLister, fn StartFunc) error {
	battles, err := store.ListPendingAutoStart(ctx)
	if err != nil {
		return err
	}

	for i := range battles {
		s.Schedule(&battles[i], fn)
	}

	return nil
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Armed reports whether a timer is currently armed for the battle.
func (s *Scheduler) Armed(battleID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[battleID]
	return ok
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// fire runs the start transition. A failed auto-start is logged and
// dropped rather than retried; the battle stays in its last persisted
// status so an operator can intervene.
func (s *Scheduler) fire(battleID uuid.UUID, fn StartFunc) {
	if err := fn(context.Background(), battleID); err != nil {
		slog.Error("auto-start failed", "battle_id", battleID, "error", err)
	}
}
