package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"vigil/internal/audit"
	"vigil/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Store persists the chain in the audit_entries table. Append order is the
// seq column; previous_hash is UNIQUE so two writers racing on the same tail
// cannot both commit.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
	id, event_type, action, user_id, resource_type, resource_id,
	details, created_at, previous_hash, entry_hash
`

func (s *Store) Tail(ctx context.Context) (*audit.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_entries ORDER BY seq DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read audit tail: %w", err)
	}
	return entry, nil
}

// AppendIfTail inserts entry only when the stored tail hash (GENESIS for an
// empty table) equals expectedTail.
func (s *Store) AppendIfTail(ctx context.Context, entry audit.Entry, expectedTail string) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, event_type, action, user_id, resource_type, resource_id,
			details, created_at, previous_hash, entry_hash
		)
		SELECT $1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text,
			$7::jsonb, $8::timestamptz, $9::text, $10::text
		WHERE $11::text = COALESCE(
			(SELECT entry_hash FROM audit_entries ORDER BY seq DESC LIMIT 1),
			$12::text
		)
	`
	res, err := s.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.EventType),
		entry.Action,
		nullString(entry.UserID),
		nullString(entry.ResourceType),
		nullString(entry.ResourceID),
		string(details),
		entry.CreatedAt,
		entry.PreviousHash,
		entry.EntryHash,
		expectedTail,
		audit.GenesisHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]audit.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_entries ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	query := `
		SELECT ` + selectColumns + ` FROM (
			SELECT seq, ` + selectColumns + ` FROM audit_entries ORDER BY seq DESC LIMIT $1
		) recent
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*audit.Entry, error) {
	var (
		e            audit.Entry
		id           uuid.UUID
		eventType    string
		userID       sql.NullString
		resourceType sql.NullString
		resourceID   sql.NullString
		details      []byte
	)
	if err := row.Scan(
		&id,
		&eventType,
		&e.Action,
		&userID,
		&resourceType,
		&resourceID,
		&details,
		&e.CreatedAt,
		&e.PreviousHash,
		&e.EntryHash,
	); err != nil {
		return nil, err
	}
	e.ID = id
	e.EventType = audit.EventType(eventType)
	e.UserID = userID.String
	e.ResourceType = resourceType.String
	e.ResourceID = resourceID.String
	e.CreatedAt = e.CreatedAt.UTC()
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("unmarshal audit details: %w", err)
		}
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
