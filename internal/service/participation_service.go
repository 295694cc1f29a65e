package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pkalnins/arena/internal/apperrors"
	"github.com/pkalnins/arena/internal/battle"
	"github.com/pkalnins/arena/internal/event"
	"github.com/pkalnins/arena/internal/middleware"
	"github.com/pkalnins/arena/internal/store"
)

// ParticipationService handles the join and invite workflow against the
// battle's current status and the role permission table.
type ParticipationService struct {
	store *store.BattleStore
	bus   *event.Bus
	clock clockwork.Clock
}

func NewParticipationService(store *store.BattleStore, bus *event.Bus, clock clockwork.Clock) *ParticipationService {
	return &ParticipationService{store: store, bus: bus, clock: clock}
}

type JoinBattleInput struct {
	BattleID uuid.UUID
	Role     battle.Role // defaults to player
}

type InviteInput struct {
	BattleID uuid.UUID
	UserID   uuid.UUID
	Role     battle.Role
}

// JoinBattle is the self-service path: accepting a pending invitation, or
// joining as a plain player once the lobby is open. The returned bool is
// true when a new participant row was created.
func (s *ParticipationService) JoinBattle(ctx context.Context, input JoinBattleInput) (*battle.Participant, bool, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, false, apperrors.Forbidden("no authenticated user")
	}

	b, err := s.getBattle(ctx, input.BattleID)
	if err != nil {
		return nil, false, err
	}

	now := s.clock.Now().UTC()

	p, err := s.store.GetParticipant(ctx, input.BattleID, userID)
	if err == nil {
		if p.Status == battle.ParticipantAccepted {
			return p, false, nil
		}

		// Pending invitation: accept with the invited role, which sets the
		// join window (staff can come in during setup, players cannot).
		if !p.Role.CanJoinDuring(b.Status) {
			return nil, false, apperrors.Conflict("battle is %s and not open for joining", b.Status)
		}

		p.Status = battle.ParticipantAccepted
		p.JoinedAt = &now
		if err := s.store.UpdateParticipant(ctx, p); err != nil {
			return nil, false, fmt.Errorf("failed to accept invitation: %w", err)
		}

		s.bus.Publish(event.ParticipantJoined{BattleID: b.ID, Participant: *p})
		return p, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	role := input.Role
	if role == "" {
		role = battle.RolePlayer
	}
	if role != battle.RolePlayer {
		return nil, false, apperrors.Forbidden("only players may join without an invitation")
	}
	if !role.CanJoinDuring(b.Status) {
		return nil, false, apperrors.Conflict("battle is %s and not open for joining", b.Status)
	}

	p = &battle.Participant{
		ID:        uuid.New(),
		BattleID:  b.ID,
		UserID:    userID,
		Role:      role,
		Status:    battle.ParticipantAccepted,
		InvitedAt: now,
		JoinedAt:  &now,
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		return nil, false, fmt.Errorf("failed to create participant: %w", err)
	}

	s.bus.Publish(event.ParticipantJoined{BattleID: b.ID, Participant: *p})
	return p, true, nil
}

// InviteParticipant is the privileged path. Re-inviting someone with a
// different role revokes their current acceptance and puts them back in
// pending until they accept again.
func (s *ParticipationService) InviteParticipant(ctx context.Context, input InviteInput) (*battle.Participant, error) {
	inviterID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, apperrors.Forbidden("no authenticated user")
	}

	b, err := s.getBattle(ctx, input.BattleID)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = battle.RolePlayer
	}
	switch role {
	case battle.RoleAdmin, battle.RoleEditor, battle.RolePlayer:
	case battle.RoleOwner:
		return nil, apperrors.BadRequest("ownership cannot be assigned through an invitation")
	default:
		return nil, apperrors.BadRequest("unknown role %q", role)
	}

	inviter, err := s.store.GetParticipant(ctx, b.ID, inviterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Forbidden("inviter is not a participant of this battle")
	}
	if err != nil {
		return nil, err
	}
	if inviter.Status != battle.ParticipantAccepted || !inviter.Role.Can(battle.CapManageInvitations) {
		return nil, apperrors.Forbidden("inviter may not manage invitations for this battle")
	}

	now := s.clock.Now().UTC()

	existing, err := s.store.GetParticipant(ctx, b.ID, input.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		invite := &battle.Participant{
			ID:        uuid.New(),
			BattleID:  b.ID,
			UserID:    input.UserID,
			Role:      role,
			Status:    battle.ParticipantPending,
			InvitedAt: now,
		}
		if err := s.store.CreateParticipant(ctx, invite); err != nil {
			return nil, fmt.Errorf("failed to create invitation: %w", err)
		}

		s.bus.Publish(event.InviteCreated{BattleID: b.ID, Invite: *invite})
		return invite, nil
	}
	if err != nil {
		return nil, err
	}

	if existing.Role == battle.RoleOwner {
		return nil, apperrors.BadRequest("the owner's role cannot be changed through invitations")
	}

	if existing.Role == role && existing.Status == battle.ParticipantPending {
		// Nothing changes; no redundant event.
		return existing, nil
	}

	existing.Role = role
	existing.Status = battle.ParticipantPending
	existing.JoinedAt = nil
	if err := s.store.UpdateParticipant(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}

	s.bus.Publish(event.InviteCreated{BattleID: b.ID, Invite: *existing})
	return existing, nil
}

// ListParticipants returns a battle's roster in invitation order.
func (s *ParticipationService) ListParticipants(ctx context.Context, battleID uuid.UUID) ([]battle.Participant, error) {
	if _, err := s.getBattle(ctx, battleID); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, battleID)
}

// GetParticipant returns the caller's own participant row for a battle.
func (s *ParticipationService) GetParticipant(ctx context.Context, battleID, userID uuid.UUID) (*battle.Participant, error) {
	p, err := s.store.GetParticipant(ctx, battleID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("participant not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ParticipationService) getBattle(ctx context.Context, id uuid.UUID) (*battle.Battle, error) {
	b, err := s.store.GetBattle(ctx, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("battle %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
