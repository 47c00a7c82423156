package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"uplregistry/internal/domain/upl/entities"
	"uplregistry/pkg/database"
)

// UplPostgresStore is the alternate keyed document store backed by
// Postgres: one JSONB row per UPL in a table named by the caller
// (active_upls or archived_upls), keyed on id. It mirrors UplFileStore's
// contract exactly, so the registry can be wired against either without
// change.
type UplPostgresStore struct {
	db     *database.Database
	table  string
	logger zerolog.Logger
}

func NewUplPostgresStore(db *database.Database, table string, logger zerolog.Logger) *UplPostgresStore {
	return &UplPostgresStore{db: db, table: table, logger: logger}
}

func (s *UplPostgresStore) LoadAll() (map[entities.UplId]*entities.Upl, error) {
	ctx := context.Background()
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT document FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	result := make(map[entities.UplId]*entities.Upl)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning row from %s: %w", s.table, err)
		}
		var upl entities.Upl
		if err := json.Unmarshal(raw, &upl); err != nil {
			return nil, fmt.Errorf("decoding document from %s: %w", s.table, err)
		}
		result[upl.ID] = &upl
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.table, err)
	}
	return result, nil
}

func (s *UplPostgresStore) Insert(upl *entities.Upl) error {
	return s.upsert(context.Background(), nil, upl)
}

func (s *UplPostgresStore) Save(upl *entities.Upl) error {
	return s.upsert(context.Background(), nil, upl)
}

func (s *UplPostgresStore) Remove(id entities.UplId) error {
	_, err := s.db.Exec(context.Background(), fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), string(id))
	if err != nil {
		return fmt.Errorf("deleting %s from %s: %w", id, s.table, err)
	}
	return nil
}

func (s *UplPostgresStore) upsert(ctx context.Context, tx pgx.Tx, upl *entities.Upl) error {
	data, err := json.Marshal(upl)
	if err != nil {
		return fmt.Errorf("encoding upl %s: %w", upl.ID, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, document)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document
	`, s.table)

	if tx != nil {
		_, err = tx.Exec(ctx, query, string(upl.ID), data)
	} else {
		_, err = s.db.Exec(ctx, query, string(upl.ID), data)
	}
	if err != nil {
		return fmt.Errorf("upserting upl %s into %s: %w", upl.ID, s.table, err)
	}
	return nil
}

// removeTx deletes id within an already-open transaction.
func (s *UplPostgresStore) removeTx(ctx context.Context, tx pgx.Tx, id entities.UplId) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), string(id))
	if err != nil {
		return fmt.Errorf("deleting %s from %s: %w", id, s.table, err)
	}
	return nil
}

// UplPostgresTxMover performs the close-cart move-then-archive step for a
// batch of ids inside one transaction, using a pair of UplPostgresStore
// table handles that must share the same underlying *database.Database.
type UplPostgresTxMover struct {
	db      *database.Database
	active  *UplPostgresStore
	archive *UplPostgresStore
	logger  zerolog.Logger
}

func NewUplPostgresTxMover(db *database.Database, active, archive *UplPostgresStore, logger zerolog.Logger) *UplPostgresTxMover {
	return &UplPostgresTxMover{db: db, active: active, archive: archive, logger: logger}
}

// MoveBatch deletes each upl from the active table and inserts it into
// the archive table, all inside a single pgx.Tx, so a crash partway
// through never leaves an id present in both or neither table.
func (m *UplPostgresTxMover) MoveBatch(ctx context.Context, upls []*entities.Upl) error {
	return m.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, u := range upls {
			if err := m.active.removeTx(ctx, tx, u.ID); err != nil {
				return err
			}
			if err := m.archive.upsert(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}
