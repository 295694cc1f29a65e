package battle

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RolePlayer Role = "player"
)

// IsManagement reports whether the role is a staff role. Staff can join a
// battle during setup, while plain players have to wait for the lobby.
func (r Role) IsManagement() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleEditor
}

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
)

type Participant struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	BattleID  uuid.UUID         `db:"battle_id" json:"battle_id"`
	UserID    uuid.UUID         `db:"user_id" json:"user_id"`
	Role      Role              `db:"role" json:"role"`
	Status    ParticipantStatus `db:"status" json:"status"`
	InvitedAt time.Time         `db:"invited_at" json:"invited_at"`
	JoinedAt  *time.Time        `db:"joined_at" json:"joined_at,omitempty"`
}

// JoinableStatuses returns the battle statuses during which a participant
// with the given role may join or accept an invitation.
func (r Role) JoinableStatuses() []Status {
	if r.IsManagement() {
		return []Status{StatusDraft, StatusConfiguring, StatusReady, StatusScheduled, StatusLobby, StatusActive}
	}
	return []Status{StatusLobby, StatusActive}
}

// CanJoinDuring reports whether the role may join while the battle is in
// the given status.
func (r Role) CanJoinDuring(s Status) bool {
	for _, allowed := range r.JoinableStatuses() {
		if s == allowed {
			return true
		}
	}
	return false
}
