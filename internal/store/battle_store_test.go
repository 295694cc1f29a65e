package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkalnins/arena/internal/battle"
	"github.com/pkalnins/arena/internal/db"
	users "github.com/pkalnins/arena/internal/user"
	"github.com/pkalnins/arena/internal/utils"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// A pooled second connection would see its own empty :memory: database.
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	return database
}

func createTestUser(t *testing.T, database *sqlx.DB) uuid.UUID {
	t.Helper()

	userStore := NewUserStore(database)
	u := &users.User{
		ID:        uuid.New(),
		Email:     "fighter@arena.local",
		Username:  "Fighter",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, userStore.CreateUser(context.Background(), u))
	return u.ID
}

func createTestBattle(t *testing.T, database *sqlx.DB, store *BattleStore, b *battle.Battle, owner *battle.Participant) {
	t.Helper()

	ctx := context.Background()
	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, store.CreateBattle(ctx, tx, b))
	if owner != nil {
		require.NoError(t, store.CreateParticipantTx(ctx, tx, owner))
	}
	require.NoError(t, tx.Commit())
}

func TestCreateBattleWithOwner(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)
	ownerID := createTestUser(t, database)

	now := time.Now().UTC()
	b := &battle.Battle{
		ID:               uuid.New(),
		Name:             "Friday Night Clash",
		ShortDescription: utils.StringOrNil("weekly battle"),
		Status:           battle.StatusDraft,
		Configuration:    json.RawMessage(`{"problems":[1,2,3]}`),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	owner := &battle.Participant{
		ID:        uuid.New(),
		BattleID:  b.ID,
		UserID:    ownerID,
		Role:      battle.RoleOwner,
		Status:    battle.ParticipantAccepted,
		InvitedAt: now,
		JoinedAt:  &now,
	}

	createTestBattle(t, database, store, b, owner)

	fetched, err := store.GetBattle(context.Background(), b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, b.ID, fetched.ID)
	assert.Equal(t, b.Name, fetched.Name)
	assert.Equal(t, "weekly battle", *fetched.ShortDescription)
	assert.Equal(t, battle.StatusDraft, fetched.Status)
	assert.JSONEq(t, `{"problems":[1,2,3]}`, string(fetched.Configuration))
	assert.False(t, fetched.AutoStart)
	assert.Nil(t, fetched.ScheduledStartAt)
	assert.Nil(t, fetched.StartedAt)

	p, err := store.GetParticipant(context.Background(), b.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, battle.RoleOwner, p.Role)
	assert.Equal(t, battle.ParticipantAccepted, p.Status)
	require.NotNil(t, p.JoinedAt)
	assert.WithinDuration(t, now, *p.JoinedAt, time.Second)
}

func TestGetBattleNotFound(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)

	_, err := store.GetBattle(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateBattle(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)
	now := time.Now().UTC()

	b := &battle.Battle{ID: uuid.New(), Name: "Clash", Status: battle.StatusDraft, CreatedAt: now, UpdatedAt: now}
	createTestBattle(t, database, store, b, nil)

	startAt := now.Add(time.Hour)
	b.Name = "Renamed Clash"
	b.Status = battle.StatusScheduled
	b.AutoStart = true
	b.ScheduledStartAt = &startAt
	b.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.UpdateBattle(context.Background(), b))

	fetched, err := store.GetBattle(context.Background(), b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Renamed Clash", fetched.Name)
	assert.Equal(t, battle.StatusScheduled, fetched.Status)
	assert.True(t, fetched.AutoStart)
	require.NotNil(t, fetched.ScheduledStartAt)
	assert.WithinDuration(t, startAt, *fetched.ScheduledStartAt, time.Second)
}

func TestListPendingAutoStart(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)
	now := time.Now().UTC()

	later := now.Add(2 * time.Hour)
	sooner := now.Add(time.Hour)

	pendingLater := &battle.Battle{ID: uuid.New(), Name: "Later", Status: battle.StatusScheduled, AutoStart: true, ScheduledStartAt: &later, CreatedAt: now, UpdatedAt: now}
	pendingSooner := &battle.Battle{ID: uuid.New(), Name: "Sooner", Status: battle.StatusScheduled, AutoStart: true, ScheduledStartAt: &sooner, CreatedAt: now, UpdatedAt: now}
	manual := &battle.Battle{ID: uuid.New(), Name: "Manual", Status: battle.StatusDraft, CreatedAt: now, UpdatedAt: now}

	createTestBattle(t, database, store, pendingLater, nil)
	createTestBattle(t, database, store, pendingSooner, nil)
	createTestBattle(t, database, store, manual, nil)

	pending, err := store.ListPendingAutoStart(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, pendingSooner.ID, pending[0].ID)
	assert.Equal(t, pendingLater.ID, pending[1].ID)
}

func TestParticipantUniquePerBattle(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)
	userID := createTestUser(t, database)
	now := time.Now().UTC()

	b := &battle.Battle{ID: uuid.New(), Name: "Clash", Status: battle.StatusLobby, CreatedAt: now, UpdatedAt: now}
	createTestBattle(t, database, store, b, nil)

	p := &battle.Participant{ID: uuid.New(), BattleID: b.ID, UserID: userID, Role: battle.RolePlayer, Status: battle.ParticipantAccepted, InvitedAt: now, JoinedAt: &now}
	require.NoError(t, store.CreateParticipant(context.Background(), p))

	dup := &battle.Participant{ID: uuid.New(), BattleID: b.ID, UserID: userID, Role: battle.RoleEditor, Status: battle.ParticipantPending, InvitedAt: now}
	err := store.CreateParticipant(context.Background(), dup)
	assert.Error(t, err)
}

func TestUpdateParticipant(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)
	userID := createTestUser(t, database)
	now := time.Now().UTC()

	b := &battle.Battle{ID: uuid.New(), Name: "Clash", Status: battle.StatusDraft, CreatedAt: now, UpdatedAt: now}
	createTestBattle(t, database, store, b, nil)

	p := &battle.Participant{ID: uuid.New(), BattleID: b.ID, UserID: userID, Role: battle.RoleEditor, Status: battle.ParticipantPending, InvitedAt: now}
	require.NoError(t, store.CreateParticipant(context.Background(), p))

	p.Status = battle.ParticipantAccepted
	p.JoinedAt = &now
	require.NoError(t, store.UpdateParticipant(context.Background(), p))

	fetched, err := store.GetParticipant(context.Background(), b.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, battle.ParticipantAccepted, fetched.Status)
	assert.Equal(t, battle.RoleEditor, fetched.Role)
	require.NotNil(t, fetched.JoinedAt)
}

func TestListParticipants(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	store := NewBattleStore(database)
	now := time.Now().UTC()

	b := &battle.Battle{ID: uuid.New(), Name: "Clash", Status: battle.StatusLobby, CreatedAt: now, UpdatedAt: now}
	createTestBattle(t, database, store, b, nil)

	first := createTestUser(t, database)
	second := createTestUser(t, database)

	require.NoError(t, store.CreateParticipant(context.Background(), &battle.Participant{
		ID: uuid.New(), BattleID: b.ID, UserID: first, Role: battle.RoleOwner, Status: battle.ParticipantAccepted, InvitedAt: now.Add(-time.Minute), JoinedAt: &now,
	}))
	require.NoError(t, store.CreateParticipant(context.Background(), &battle.Participant{
		ID: uuid.New(), BattleID: b.ID, UserID: second, Role: battle.RolePlayer, Status: battle.ParticipantPending, InvitedAt: now,
	}))

	participants, err := store.ListParticipants(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, first, participants[0].UserID)
	assert.Equal(t, second, participants[1].UserID)
}
