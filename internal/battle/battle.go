package battle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft       Status = "draft"
	StatusConfiguring Status = "configuring"
	StatusScheduled   Status = "scheduled"
	StatusReady       Status = "ready"
	StatusLobby       Status = "lobby"
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// IsConfigurable reports whether the battle still accepts configuration
// changes. Once a battle reaches the lobby its setup is locked in.
func (s Status) IsConfigurable() bool {
	switch s {
	case StatusDraft, StatusConfiguring, StatusReady, StatusScheduled:
		return true
	}
	return false
}

type StartMode string

const (
	StartManual    StartMode = "manual"
	StartScheduled StartMode = "scheduled"
)

type Battle struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	ShortDescription *string         `db:"short_description" json:"short_description,omitempty"`
	Status           Status          `db:"status" json:"status"`
	Configuration    json.RawMessage `db:"configuration" json:"configuration,omitempty"`
	AutoStart        bool            `db:"auto_start" json:"auto_start"`
	ScheduledStartAt *time.Time      `db:"scheduled_start_at" json:"scheduled_start_at,omitempty"`
	StartedAt        *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
