package event

import (
	"github.com/google/uuid"

	"github.com/pkalnins/arena/internal/battle"
)

// Event is the closed set of lifecycle notifications. Name is the wire
// identifier transports forward verbatim; BattleID is the room the event
// belongs to.
type Event interface {
	Name() string
	RoomID() uuid.UUID
}

type LobbyOpened struct {
	Battle battle.Battle `json:"battle"`
}

func (e LobbyOpened) Name() string      { return "lifecycle.lobby-opened" }
func (e LobbyOpened) RoomID() uuid.UUID { return e.Battle.ID }

type ParticipantJoined struct {
	BattleID    uuid.UUID          `json:"battle_id"`
	Participant battle.Participant `json:"participant"`
}

func (e ParticipantJoined) Name() string      { return "lifecycle.participant-joined" }
func (e ParticipantJoined) RoomID() uuid.UUID { return e.BattleID }

type StatusChanged struct {
	BattleID uuid.UUID     `json:"battle_id"`
	Status   battle.Status `json:"status"`
}

func (e StatusChanged) Name() string      { return "lifecycle.status-changed" }
func (e StatusChanged) RoomID() uuid.UUID { return e.BattleID }

type InviteCreated struct {
	BattleID uuid.UUID          `json:"battle_id"`
	Invite   battle.Participant `json:"invite"`
}

func (e InviteCreated) Name() string      { return "lifecycle.invite-created" }
func (e InviteCreated) RoomID() uuid.UUID { return e.BattleID }
