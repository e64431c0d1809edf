package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"vigil/internal/export"
	"vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Store persists export requests in the export_requests table. Status
// transitions are conditional updates on the expected status.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
	id, requester_id, requester_role, bundle_type, scan_id, status, phi_detected,
	phi_override_approved, phi_override_justification, phi_override_approved_by,
	created_at, resolved_at, resolved_by
`

func (s *Store) Create(ctx context.Context, r *export.Request) error {
	query := `
		INSERT INTO export_requests (
			id, requester_id, requester_role, bundle_type, scan_id, status, phi_detected,
			phi_override_approved, phi_override_justification, phi_override_approved_by,
			created_at, resolved_at, resolved_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	approved, justification, approvedBy := overrideColumns(r.PHIOverride)
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.RequesterID,
		string(r.RequesterRole),
		string(r.BundleType),
		scanIDColumn(r.ScanID),
		string(r.Status),
		r.PHIDetected,
		approved,
		justification,
		approvedBy,
		r.CreatedAt,
		timeColumn(r.ResolvedAt),
		nullString(r.ResolvedBy),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert export request: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id domain.ExportID) (*export.Request, error) {
	query := `SELECT ` + selectColumns + ` FROM export_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find export request: %w", err)
	}
	return r, nil
}

// List returns requests in any of statuses (all when empty), newest first.
func (s *Store) List(ctx context.Context, statuses ...export.Status) ([]*export.Request, error) {
	var filter []string
	for _, st := range statuses {
		filter = append(filter, string(st))
	}
	query := `
		SELECT ` + selectColumns + ` FROM export_requests
		WHERE $1::text[] IS NULL OR status = ANY($1::text[])
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(filter))
	if err != nil {
		return nil, fmt.Errorf("list export requests: %w", err)
	}
	defer rows.Close()

	var out []*export.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export requests: %w", err)
	}
	return out, nil
}

// CompareAndSwap writes updated only while the stored status equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, expected export.Status, updated *export.Request) error {
	query := `
		UPDATE export_requests SET
			status = $3,
			phi_override_approved = $4,
			phi_override_justification = $5,
			phi_override_approved_by = $6,
			resolved_at = $7,
			resolved_by = $8
		WHERE id = $1 AND status = $2
	`
	approved, justification, approvedBy := overrideColumns(updated.PHIOverride)
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(updated.ID),
		string(expected),
		string(updated.Status),
		approved,
		justification,
		approvedBy,
		timeColumn(updated.ResolvedAt),
		nullString(updated.ResolvedBy),
	)
	if err != nil {
		return fmt.Errorf("update export request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update export request: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM export_requests WHERE id = $1)`, uuid.UUID(updated.ID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check export request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*export.Request, error) {
	var (
		r             export.Request
		id            uuid.UUID
		role          string
		bundle        string
		scanID        uuid.NullUUID
		status        string
		approved      sql.NullBool
		justification sql.NullString
		approvedBy    sql.NullString
		resolvedAt    sql.NullTime
		resolvedBy    sql.NullString
	)
	if err := row.Scan(
		&id,
		&r.RequesterID,
		&role,
		&bundle,
		&scanID,
		&status,
		&r.PHIDetected,
		&approved,
		&justification,
		&approvedBy,
		&r.CreatedAt,
		&resolvedAt,
		&resolvedBy,
	); err != nil {
		return nil, err
	}
	r.ID = domain.ExportID(id)
	r.RequesterRole = domain.Role(role)
	r.BundleType = export.BundleType(bundle)
	r.Status = export.Status(status)
	r.CreatedAt = r.CreatedAt.UTC()
	if scanID.Valid {
		sid := domain.ScanID(scanID.UUID)
		r.ScanID = &sid
	}
	if approved.Valid {
		r.PHIOverride = &export.PHIOverride{
			Approved:      approved.Bool,
			Justification: justification.String,
			ApprovedBy:    approvedBy.String,
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		r.ResolvedAt = &t
	}
	r.ResolvedBy = resolvedBy.String
	return &r, nil
}

func overrideColumns(o *export.PHIOverride) (sql.NullBool, sql.NullString, sql.NullString) {
	if o == nil {
		return sql.NullBool{}, sql.NullString{}, sql.NullString{}
	}
	return sql.NullBool{Bool: o.Approved, Valid: true},
		sql.NullString{String: o.Justification, Valid: true},
		sql.NullString{String: o.ApprovedBy, Valid: true}
}

func scanIDColumn(id *domain.ScanID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*id), Valid: true}
}

func timeColumn(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
