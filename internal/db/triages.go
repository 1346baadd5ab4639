package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/themobileprof/telecare-be/internal/triage"
)

const triageColumns = `id, patient_id, symptoms, vital_signs, assessment, additional_notes,
	status, reviewed_by, reviewed_at, doctor_notes, created_at, updated_at`

func scanTriage(row rowScanner) (*triage.Triage, error) {
	t := &triage.Triage{}
	var symptoms, vitals, assessment []byte

	err := row.Scan(
		&t.ID, &t.PatientID, &symptoms, &vitals, &assessment, &t.AdditionalNotes,
		&t.Status, &t.ReviewedBy, &t.ReviewedAt, &t.DoctorNotes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(symptoms, &t.Symptoms); err != nil {
		return nil, fmt.Errorf("failed to decode symptoms: %w", err)
	}
	if err := json.Unmarshal(assessment, &t.Assessment); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}
	if len(vitals) > 0 {
		if err := json.Unmarshal(vitals, &t.VitalSigns); err != nil {
			return nil, fmt.Errorf("failed to decode vital signs: %w", err)
		}
	}
	return t, nil
}

// CreateTriage stores a new triage, filling ID and timestamps
func (db *DB) CreateTriage(ctx context.Context, t *triage.Triage) error {
	symptoms, err := json.Marshal(t.Symptoms)
	if err != nil {
		return fmt.Errorf("failed to encode symptoms: %w", err)
	}
	assessment, err := json.Marshal(t.Assessment)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}
	var vitals any
	if t.VitalSigns != nil {
		raw, err := json.Marshal(t.VitalSigns)
		if err != nil {
			return fmt.Errorf("failed to encode vital signs: %w", err)
		}
		vitals = raw
	}

	query := `
		INSERT INTO triages (patient_id, symptoms, vital_signs, assessment, risk_level, urgency, additional_notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err = db.QueryRowContext(ctx, query,
		t.PatientID, symptoms, vitals, assessment,
		t.Assessment.RiskLevel, t.Assessment.Urgency, t.AdditionalNotes, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create triage: %w", err)
	}
	return nil
}

// GetTriage retrieves a triage by ID
func (db *DB) GetTriage(ctx context.Context, id string) (*triage.Triage, error) {
	query := `SELECT ` + triageColumns + ` FROM triages WHERE id = $1`

	t, err := scanTriage(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, triage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get triage: %w", err)
	}
	return t, nil
}

// UpdateTriageReview writes a doctor's review
func (db *DB) UpdateTriageReview(ctx context.Context, id string, r triage.Review) (*triage.Triage, error) {
	query := `
		UPDATE triages
		SET reviewed_by = $2, reviewed_at = $3, doctor_notes = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + triageColumns

	t, err := scanTriage(db.QueryRowContext(ctx, query, id, r.ReviewedBy, r.ReviewedAt, r.DoctorNotes, r.Status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, triage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update triage: %w", err)
	}
	return t, nil
}

// ListTriages pages newest first. An empty patientID lists every patient.
func (db *DB) ListTriages(ctx context.Context, patientID string, f triage.Filter, limit, offset int) ([]triage.Triage, int, error) {
	where := `WHERE ($1 = '' OR patient_id::text = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR risk_level = $3)`

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM triages `+where,
		patientID, f.Status, f.RiskLevel,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count triages: %w", err)
	}

	query := `SELECT ` + triageColumns + ` FROM triages ` + where + `
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	rows, err := db.QueryContext(ctx, query, patientID, f.Status, f.RiskLevel, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list triages: %w", err)
	}
	defer rows.Close()

	triages := make([]triage.Triage, 0, limit)
	for rows.Next() {
		t, err := scanTriage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan triage: %w", err)
		}
		triages = append(triages, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate triages: %w", err)
	}

	return triages, total, nil
}

// TriageStats counts triages by risk level, status and urgency
func (db *DB) TriageStats(ctx context.Context) (*triage.Stats, error) {
	stats := &triage.Stats{
		ByRiskLevel: make(map[string]int),
		ByStatus:    make(map[string]int),
		ByUrgency:   make(map[string]int),
	}

	rows, err := db.QueryContext(ctx, `
		SELECT risk_level, status, urgency, COUNT(*)
		FROM triages
		GROUP BY risk_level, status, urgency
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query triage stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var risk, status, urgency string
		var count int
		if err := rows.Scan(&risk, &status, &urgency, &count); err != nil {
			return nil, fmt.Errorf("failed to scan triage stats: %w", err)
		}
		stats.Total += count
		stats.ByRiskLevel[risk] += count
		stats.ByStatus[status] += count
		stats.ByUrgency[urgency] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate triage stats: %w", err)
	}

	return stats, nil
}
