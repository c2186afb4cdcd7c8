package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite snapshot archive.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a snapshot is written
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS case_snapshots (
		case_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		overall_risk TEXT NOT NULL DEFAULT 'low',
		created_at DATETIME NOT NULL,
		archived_at DATETIME NOT NULL,
		snapshot TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_case_snapshots_patient ON case_snapshots(patient_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save archives a case file, replacing an earlier snapshot of the same case.
func (s *SQLiteStore) Save(ctx context.Context, pc *domain.PatientContext) error {
	r, err := newRow(pc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_snapshots (
			case_id, patient_id, overall_risk, created_at, archived_at, snapshot
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			overall_risk = excluded.overall_risk,
			archived_at = excluded.archived_at,
			snapshot = excluded.snapshot
	`,
		r.caseID,
		r.patientID,
		r.overallRisk,
		r.createdAt,
		time.Now().UTC(),
		string(r.snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", r.caseID, err)
	}
	return nil
}

// Load restores an archived case file.
func (s *SQLiteStore) Load(ctx context.Context, caseID string) (*domain.PatientContext, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM case_snapshots WHERE case_id = ?", caseID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(caseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", caseID, err)
	}
	return domain.RestoreSnapshot([]byte(data))
}

// ListByPatient returns the archived cases of a patient, newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.ArchivedCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_id, patient_id, overall_risk, created_at
		FROM case_snapshots
		WHERE patient_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM case_snapshots").Scan(&count)
	return count, err
}

// Delete removes an archived case file.
func (s *SQLiteStore) Delete(ctx context.Context, caseID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM case_snapshots WHERE case_id = ?", caseID)
	return err
}

func (s *SQLiteStore) listSnapshots(ctx context.Context, limit int) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT snapshot FROM case_snapshots ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, json.RawMessage(data))
	}
	return result, rows.Err()
}

// ExportJSON exports all snapshots to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports snapshots from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
