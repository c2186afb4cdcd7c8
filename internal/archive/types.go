// Package archive keeps immutable snapshots of finished assessments so that
// case files outlive the in-memory assessment cache.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// ExportVersion identifies the JSON export layout
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of snapshots exported at once.
const maxExportLimit = 1000000

// Store is a snapshot archive with maintenance operations on top of the
// archive contract used by the assessment service.
type Store interface {
	domain.SnapshotArchive

	// Count returns the number of archived case files.
	Count(ctx context.Context) (int64, error)

	// Delete removes an archived case file.
	Delete(ctx context.Context, caseID string) error

	// ExportJSON writes every archived snapshot to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON loads snapshots from reader, skipping case ids that
	// already exist.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)
}

// Export represents the JSON export format.
type Export struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Cases      []json.RawMessage `json:"cases"`
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// row holds the indexed columns of one snapshot
type row struct {
	caseID      string
	patientID   string
	overallRisk string
	createdAt   time.Time
	snapshot    []byte
}

func newRow(pc *domain.PatientContext) (row, error) {
	if pc == nil || pc.CaseID == "" {
		return row{}, domain.NewValidationError("case_id", "case file has no case id", nil)
	}
	data, err := pc.Snapshot()
	if err != nil {
		return row{}, err
	}

	risk := domain.RiskLow
	if pc.Synthesis != nil {
		risk = pc.Synthesis.OverallRisk
	}
	return row{
		caseID:      pc.CaseID,
		patientID:   pc.PatientID,
		overallRisk: string(risk),
		createdAt:   pc.CreatedAt.UTC(),
		snapshot:    data,
	}, nil
}

func scanArchivedCase(s scanner) (domain.ArchivedCase, error) {
	var ac domain.ArchivedCase
	var risk string
	if err := s.Scan(&ac.CaseID, &ac.PatientID, &risk, &ac.CreatedAt); err != nil {
		return domain.ArchivedCase{}, err
	}
	ac.OverallRisk = domain.RiskLevel(risk)
	return ac, nil
}

func notFound(caseID string) error {
	return fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
}

// snapshotLister is implemented by both stores for export
type snapshotLister interface {
	listSnapshots(ctx context.Context, limit int) ([]json.RawMessage, error)
}

func exportJSON(ctx context.Context, l snapshotLister, writer io.Writer) error {
	cases, err := l.listSnapshots(ctx, maxExportLimit)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(cases),
		Cases:      cases,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s domain.SnapshotArchive, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, raw := range export.Cases {
		pc, err := domain.RestoreSnapshot(raw)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to restore snapshot: %w", err)
		}

		_, err = s.Load(ctx, pc.CaseID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if err := s.Save(ctx, pc); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}
