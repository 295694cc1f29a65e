package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pkalnins/arena/internal/db"
	"github.com/pkalnins/arena/internal/event"
	"github.com/pkalnins/arena/internal/middleware"
	"github.com/pkalnins/arena/internal/scheduler"
	"github.com/pkalnins/arena/internal/store"
	users "github.com/pkalnins/arena/internal/user"
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

type testEnv struct {
	db            *sqlx.DB
	store         *store.BattleStore
	userStore     *store.UserStore
	bus           *event.Bus
	events        <-chan event.Event
	sched         *scheduler.Scheduler
	battles       *BattleService
	participation *ParticipationService
	ownerID       uuid.UUID
	ownerCtx      context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database := setupTestDB(t)
	t.Cleanup(func() { database.Close() })

	clock := clockwork.NewRealClock()
	sched, err := scheduler.New(clock)
	require.NoError(t, err)
	t.Cleanup(func() { sched.Shutdown() })

	bus := event.NewBus()
	events, _ := bus.Subscribe(64)

	battleStore := store.NewBattleStore(database)
	env := &testEnv{
		db:            database,
		store:         battleStore,
		userStore:     store.NewUserStore(database),
		bus:           bus,
		events:        events,
		sched:         sched,
		battles:       NewBattleService(database, battleStore, bus, sched, clock),
		participation: NewParticipationService(battleStore, bus, clock),
	}

	env.ownerID = env.newUser(t, "Owner")
	env.ownerCtx = middleware.WithUserID(context.Background(), env.ownerID)

	return env
}

func (e *testEnv) newUser(t *testing.T, name string) uuid.UUID {
	t.Helper()

	u := &users.User{ID: uuid.New(), Username: name, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.userStore.CreateUser(context.Background(), u))
	return u.ID
}

func (e *testEnv) userCtx(userID uuid.UUID) context.Context {
	return middleware.WithUserID(context.Background(), userID)
}

// drainEvents returns everything published so far without blocking.
func (e *testEnv) drainEvents() []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-e.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsNamed(events []event.Event, name string) []event.Event {
	var out []event.Event
	for _, ev := range events {
		if ev.Name() == name {
			out = append(out, ev)
		}
	}
	return out
}
