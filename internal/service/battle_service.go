package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/pkalnins/arena/internal/apperrors"
	"github.com/pkalnins/arena/internal/battle"
	"github.com/pkalnins/arena/internal/event"
	"github.com/pkalnins/arena/internal/middleware"
	"github.com/pkalnins/arena/internal/scheduler"
	"github.com/pkalnins/arena/internal/store"
	"github.com/pkalnins/arena/internal/utils"
)

// BattleService is the lifecycle engine: it owns battle status
// transitions, the auto-start timers, and publishes an event for every
// effect it commits.
type BattleService struct {
	db    *sqlx.DB
	store *store.BattleStore
	bus   *event.Bus
	sched *scheduler.Scheduler
	clock clockwork.Clock
}

func NewBattleService(db *sqlx.DB, store *store.BattleStore, bus *event.Bus, sched *scheduler.Scheduler, clock clockwork.Clock) *BattleService {
	return &BattleService{db: db, store: store, bus: bus, sched: sched, clock: clock}
}

type CreateBattleInput struct {
	Name             string
	ShortDescription string
	Configuration    json.RawMessage
	StartMode        battle.StartMode
	ScheduledStartAt *time.Time
}

type UpdateBattleInput struct {
	Name             *string
	ShortDescription *string
	Configuration    json.RawMessage
	Status           *battle.Status
	StartMode        *battle.StartMode
	ScheduledStartAt *time.Time
}

// startPlan is the scheduling outcome of a create or update: the next
// status plus the auto-start fields that must stay consistent with it.
type startPlan struct {
	status           battle.Status
	autoStart        bool
	scheduledStartAt *time.Time
	startedAt        *time.Time
}

func (s *BattleService) CreateBattle(ctx context.Context, input CreateBattleInput) (*battle.Battle, error) {
	creatorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, apperrors.Forbidden("no authenticated user")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.BadRequest("battle name must not be empty")
	}

	now := s.clock.Now().UTC()
	plan := createPlan(input.StartMode, input.ScheduledStartAt, now)

	b := &battle.Battle{
		ID:               uuid.New(),
		Name:             name,
		ShortDescription: utils.StringOrNil(input.ShortDescription),
		Status:           plan.status,
		Configuration:    input.Configuration,
		AutoStart:        plan.autoStart,
		ScheduledStartAt: plan.scheduledStartAt,
		StartedAt:        plan.startedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	owner := &battle.Participant{
		ID:        uuid.New(),
		BattleID:  b.ID,
		UserID:    creatorID,
		Role:      battle.RoleOwner,
		Status:    battle.ParticipantAccepted,
		InvitedAt: now,
		JoinedAt:  &now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateBattle(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}
	if err := s.store.CreateParticipantTx(ctx, tx, owner); err != nil {
		return nil, fmt.Errorf("failed to create owner participant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.bus.Publish(event.ParticipantJoined{BattleID: b.ID, Participant: *owner})

	if b.AutoStart {
		s.sched.Schedule(b, s.AutoStart)
	}

	return b, nil
}

// createPlan computes the initial status for a new battle. A scheduled
// creation whose instant is already due starts immediately.
func createPlan(mode battle.StartMode, scheduledAt *time.Time, now time.Time) startPlan {
	if mode == battle.StartScheduled && scheduledAt != nil {
		if scheduledAt.After(now) {
			return startPlan{status: battle.StatusScheduled, autoStart: true, scheduledStartAt: scheduledAt}
		}
		return startPlan{status: battle.StatusActive, startedAt: &now}
	}
	return startPlan{status: battle.StatusDraft}
}

func (s *BattleService) UpdateBattle(ctx context.Context, id uuid.UUID, input UpdateBattleInput) (*battle.Battle, error) {
	b, err := s.getBattle(ctx, id)
	if err != nil {
		return nil, err
	}

	if !b.Status.IsConfigurable() {
		return nil, apperrors.Conflict("battle is %s and can no longer be configured", b.Status)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.BadRequest("battle name must not be empty")
		}
		b.Name = name
	}
	if input.ShortDescription != nil {
		b.ShortDescription = utils.StringOrNil(*input.ShortDescription)
	}
	if input.Configuration != nil {
		b.Configuration = input.Configuration
	}

	now := s.clock.Now().UTC()
	plan, err := updatePlan(b, input, now)
	if err != nil {
		return nil, err
	}

	prev := b.Status
	b.Status = plan.status
	b.AutoStart = plan.autoStart
	b.ScheduledStartAt = plan.scheduledStartAt
	b.StartedAt = plan.startedAt
	b.UpdatedAt = now

	if err := s.store.UpdateBattle(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update battle: %w", err)
	}

	// Fires on every update that results in lobby, not only on the edge.
	// Subscribers treat it as at-least-once.
	if b.Status == battle.StatusLobby {
		s.bus.Publish(event.LobbyOpened{Battle: *b})
	}
	if b.Status != prev {
		s.bus.Publish(event.StatusChanged{BattleID: b.ID, Status: b.Status})
	}

	if b.AutoStart {
		s.sched.Schedule(b, s.AutoStart)
	} else {
		s.sched.Cancel(b.ID)
	}

	return b, nil
}

// updatePlan recomputes status and scheduling from an update payload.
// Callers either pin the status explicitly, reschedule, or just edit
// fields (which parks a manual battle in ready).
func updatePlan(b *battle.Battle, input UpdateBattleInput, now time.Time) (startPlan, error) {
	scheduled := input.StartMode != nil && *input.StartMode == battle.StartScheduled

	if input.Status != nil {
		next := *input.Status
		if next == battle.StatusLobby && b.Status != battle.StatusReady && b.Status != battle.StatusScheduled {
			return startPlan{}, apperrors.Conflict("battle must be ready or scheduled to open its lobby, not %s", b.Status)
		}

		plan := startPlan{status: next, autoStart: scheduled, startedAt: b.StartedAt}
		if scheduled {
			plan.scheduledStartAt = input.ScheduledStartAt
			if plan.scheduledStartAt == nil {
				plan.scheduledStartAt = b.ScheduledStartAt
			}
			if plan.scheduledStartAt == nil {
				return startPlan{}, apperrors.BadRequest("scheduled battles require a scheduled start time")
			}
		}
		if next == battle.StatusActive && plan.startedAt == nil {
			plan.startedAt = &now
		}
		return plan, nil
	}

	if scheduled && input.ScheduledStartAt != nil {
		if !input.ScheduledStartAt.After(now) {
			// Same immediate-start rule as create.
			plan := startPlan{status: battle.StatusActive, startedAt: b.StartedAt}
			if plan.startedAt == nil {
				plan.startedAt = &now
			}
			return plan, nil
		}
		return startPlan{status: battle.StatusScheduled, autoStart: true, scheduledStartAt: input.ScheduledStartAt, startedAt: b.StartedAt}, nil
	}

	return startPlan{status: battle.StatusReady, startedAt: b.StartedAt}, nil
}

// StartBattle performs an explicit "start now". Allowed from ready,
// scheduled, or lobby; any armed timer is disarmed first so a stale
// auto-start cannot fire afterwards.
func (s *BattleService) StartBattle(ctx context.Context, id uuid.UUID) (*battle.Battle, error) {
	b, err := s.getBattle(ctx, id)
	if err != nil {
		return nil, err
	}

	switch b.Status {
	case battle.StatusReady, battle.StatusScheduled, battle.StatusLobby:
	default:
		return nil, apperrors.Conflict("battle cannot be started while %s", b.Status)
	}

	s.sched.Cancel(id)

	now := s.clock.Now().UTC()
	b.Status = battle.StatusActive
	b.AutoStart = false
	b.ScheduledStartAt = nil
	if b.StartedAt == nil {
		b.StartedAt = &now
	}
	b.UpdatedAt = now

	if err := s.store.UpdateBattle(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to start battle: %w", err)
	}

	s.bus.Publish(event.StatusChanged{BattleID: b.ID, Status: b.Status})

	return b, nil
}

// AutoStart is the StartFunc handed to the scheduler.
func (s *BattleService) AutoStart(ctx context.Context, battleID uuid.UUID) error {
	_, err := s.StartBattle(ctx, battleID)
	return err
}

func (s *BattleService) GetBattle(ctx context.Context, id uuid.UUID) (*battle.Battle, error) {
	return s.getBattle(ctx, id)
}

func (s *BattleService) ListBattles(ctx context.Context) ([]battle.Battle, error) {
	return s.store.ListBattles(ctx)
}

func (s *BattleService) getBattle(ctx context.Context, id uuid.UUID) (*battle.Battle, error) {
	b, err := s.store.GetBattle(ctx, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("battle %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
