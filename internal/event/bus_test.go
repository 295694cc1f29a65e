package event

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkalnins/arena/internal/battle"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus()

	ch1, unsub1 := bus.Subscribe(4)
	ch2, unsub2 := bus.Subscribe(4)
	defer unsub1()
	defer unsub2()

	battleID := uuid.New()
	bus.Publish(StatusChanged{BattleID: battleID, Status: battle.StatusActive})

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		sc, ok := ev.(StatusChanged)
		require.True(t, ok)
		assert.Equal(t, battleID, sc.BattleID)
		assert.Equal(t, battle.StatusActive, sc.Status)
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	battleID := uuid.New()
	bus.Publish(StatusChanged{BattleID: battleID, Status: battle.StatusReady})
	bus.Publish(StatusChanged{BattleID: battleID, Status: battle.StatusLobby})
	bus.Publish(StatusChanged{BattleID: battleID, Status: battle.StatusActive})

	want := []battle.Status{battle.StatusReady, battle.StatusLobby, battle.StatusActive}
	for _, status := range want {
		ev := <-ch
		assert.Equal(t, status, ev.(StatusChanged).Status)
	}
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := NewBus()

	bus.Publish(StatusChanged{BattleID: uuid.New(), Status: battle.StatusActive})

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	select {
	case ev := <-ch:
		t.Fatalf("late subscriber should not receive earlier events, got %v", ev)
	default:
	}
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	bus := NewBus()

	ch, unsub := bus.Subscribe(4)
	unsub()

	bus.Publish(StatusChanged{BattleID: uuid.New(), Status: battle.StatusActive})

	_, open := <-ch
	assert.False(t, open)
}

func TestEventNames(t *testing.T) {
	battleID := uuid.New()

	assert.Equal(t, "lifecycle.lobby-opened", LobbyOpened{Battle: battle.Battle{ID: battleID}}.Name())
	assert.Equal(t, "lifecycle.participant-joined", ParticipantJoined{BattleID: battleID}.Name())
	assert.Equal(t, "lifecycle.status-changed", StatusChanged{BattleID: battleID}.Name())
	assert.Equal(t, "lifecycle.invite-created", InviteCreated{BattleID: battleID}.Name())

	assert.Equal(t, battleID, LobbyOpened{Battle: battle.Battle{ID: battleID}}.RoomID())
	assert.Equal(t, battleID, InviteCreated{BattleID: battleID}.RoomID())
}
