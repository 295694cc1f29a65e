package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pkalnins/arena/internal/battle"
)

type BattleStore struct {
	db *sqlx.DB
}

const (
	createBattleQuery = `
		INSERT INTO battles (id, name, short_description, status, configuration, auto_start, scheduled_start_at, started_at, created_at, updated_at)
		VALUES (:id, :name, :short_description, :status, :configuration, :auto_start, :scheduled_start_at, :started_at, :created_at, :updated_at)
	`
	updateBattleQuery = `
		UPDATE battles SET
			name = :name,
			short_description = :short_description,
			status = :status,
			configuration = :configuration,
			auto_start = :auto_start,
			scheduled_start_at = :scheduled_start_at,
			started_at = :started_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	pendingAutoStartQuery = `
		SELECT * FROM battles
		WHERE auto_start = 1 AND scheduled_start_at IS NOT NULL
		ORDER BY scheduled_start_at ASC
	`
	createParticipantQuery = `
		INSERT INTO battle_participants (id, battle_id, user_id, role, status, invited_at, joined_at)
		VALUES (:id, :battle_id, :user_id, :role, :status, :invited_at, :joined_at)
	`
	updateParticipantQuery = `
		UPDATE battle_participants SET
			role = :role,
			status = :status,
			joined_at = :joined_at
		WHERE id = :id
	`
)

func NewBattleStore(db *sqlx.DB) *BattleStore {
	return &BattleStore{db: db}
}

func (s *BattleStore) CreateBattle(ctx context.Context, tx *sqlx.Tx, b *battle.Battle) error {
	_, err := tx.NamedExecContext(ctx, createBattleQuery, b)
	return err
}

func (s *BattleStore) GetBattle(ctx context.Context, id string) (*battle.Battle, error) {
	var b battle.Battle
	err := s.db.GetContext(ctx, &b, "SELECT * FROM battles WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BattleStore) ListBattles(ctx context.Context) ([]battle.Battle, error) {
	var battles []battle.Battle
	err := s.db.SelectContext(ctx, &battles, "SELECT * FROM battles ORDER BY created_at DESC")
	return battles, err
}

// ListPendingAutoStart returns every battle whose auto-start timer should
// be armed. Used by the scheduler to rebuild timers after a restart.
func (s *BattleStore) ListPendingAutoStart(ctx context.Context) ([]battle.Battle, error) {
	var battles []battle.Battle
	err := s.db.SelectContext(ctx, &battles, pendingAutoStartQuery)
	return battles, err
}

func (s *BattleStore) UpdateBattle(ctx context.Context, b *battle.Battle) error {
	_, err := s.db.NamedExecContext(ctx, updateBattleQuery, b)
	return err
}

func (s *BattleStore) CreateParticipantTx(ctx context.Context, tx *sqlx.Tx, p *battle.Participant) error {
	_, err := tx.NamedExecContext(ctx, createParticipantQuery, p)
	return err
}

func (s *BattleStore) CreateParticipant(ctx context.Context, p *battle.Participant) error {
	_, err := s.db.NamedExecContext(ctx, createParticipantQuery, p)
	return err
}

func (s *BattleStore) GetParticipant(ctx context.Context, battleID, userID uuid.UUID) (*battle.Participant, error) {
	var p battle.Participant
	err := s.db.GetContext(ctx, &p, "SELECT * FROM battle_participants WHERE battle_id = ? AND user_id = ?", battleID, userID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BattleStore) ListParticipants(ctx context.Context, battleID uuid.UUID) ([]battle.Participant, error) {
	var participants []battle.Participant
	err := s.db.SelectContext(ctx, &participants, "SELECT * FROM battle_participants WHERE battle_id = ? ORDER BY invited_at ASC", battleID)
	return participants, err
}

func (s *BattleStore) UpdateParticipant(ctx context.Context, p *battle.Participant) error {
	_, err := s.db.NamedExecContext(ctx, updateParticipantQuery, p)
	return err
}
