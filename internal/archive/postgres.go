package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL snapshot archive.
// It expects the case_snapshots table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL snapshot archive from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save archives a case file, replacing an earlier snapshot of the same case.
func (s *PostgresStore) Save(ctx context.Context, pc *domain.PatientContext) error {
	r, err := newRow(pc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO case_snapshots (
			case_id, patient_id, overall_risk, created_at, archived_at, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (case_id) DO UPDATE SET
			overall_risk = EXCLUDED.overall_risk,
			archived_at = EXCLUDED.archived_at,
			snapshot = EXCLUDED.snapshot
	`

	_, err = s.db.ExecContext(ctx, query,
		r.caseID,
		r.patientID,
		r.overallRisk,
		r.createdAt,
		time.Now().UTC(),
		r.snapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", r.caseID, err)
	}
	return nil
}

// Load restores an archived case file.
func (s *PostgresStore) Load(ctx context.Context, caseID string) (*domain.PatientContext, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM case_snapshots WHERE case_id = $1", caseID,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", caseID, err)
	}
	return domain.RestoreSnapshot(data)
}

// ListByPatient returns the archived cases of a patient, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error) {
	query := `
		SELECT case_id, patient_id, overall_risk, created_at
		FROM case_snapshots
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	result := []domain.ArchivedCase{}
	for rows.Next() {
		ac, err := scanArchivedCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, ac)
	}

	return result, rows.Err()
}

// Count returns the number of archived case files.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM case_snapshots").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// Delete removes an archived case file.
func (s *PostgresStore) Delete(ctx context.Context, caseID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM case_snapshots WHERE case_id = $1", caseID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) listSnapshots(ctx context.Context, limit int) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT snapshot FROM case_snapshots ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var result []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, json.RawMessage(data))
	}
	return result, rows.Err()
}

// ExportJSON exports all snapshots to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports snapshots from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
