package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type RecordType string

const (
	RecordDiagnosis    RecordType = "diagnosis"
	RecordPrescription RecordType = "prescription"
	RecordLabResult    RecordType = "lab-result"
	RecordVaccination  RecordType = "vaccination"
	RecordAllergy      RecordType = "allergy"
	RecordSurgery      RecordType = "surgery"
	RecordNote         RecordType = "note"
)

func (t RecordType) Valid() bool {
	switch t {
	case RecordDiagnosis, RecordPrescription, RecordLabResult, RecordVaccination, RecordAllergy, RecordSurgery, RecordNote:
		return true
	}
	return false
}

// MedicalRecord is a clinical entry written by a doctor about a patient.
// Details holds the type-specific payload (diagnosis, lab results, ...) as raw JSON.
type MedicalRecord struct {
	ID                   string          `json:"id"`
	PatientID            string          `json:"patientId"`
	DoctorID             *string         `json:"doctorId,omitempty"`
	RelatedAppointmentID *string         `json:"relatedAppointmentId,omitempty"`
	RecordType           RecordType      `json:"recordType"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Date                 time.Time       `json:"date"`
	Details              json.RawMessage `json:"details,omitempty"`
	IsPrivate            bool            `json:"isPrivate"`
	Tags                 []string        `json:"tags"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// RecordUpdate holds the editable fields. Nil leaves a column unchanged.
type RecordUpdate struct {
	RecordType  *RecordType
	Title       *string
	Description *string
	Date        *time.Time
	Details     json.RawMessage
	IsPrivate   *bool
	Tags        []string
}

const recordColumns = `id, patient_id, doctor_id, related_appointment_id, record_type, title, description,
	record_date, details, is_private, tags, created_at, updated_at`

func scanRecord(row rowScanner) (*MedicalRecord, error) {
	r := &MedicalRecord{}
	var details []byte

	err := row.Scan(
		&r.ID, &r.PatientID, &r.DoctorID, &r.RelatedAppointmentID, &r.RecordType, &r.Title, &r.Description,
		&r.Date, &details, &r.IsPrivate, pq.Array(&r.Tags), &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(details) > 0 {
		r.Details = json.RawMessage(details)
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r, nil
}

// nullableJSON maps an empty payload to SQL NULL
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// CreateRecord inserts a medical record
func (db *DB) CreateRecord(ctx context.Context, r *MedicalRecord) error {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Date.IsZero() {
		r.Date = time.Now()
	}

	query := `
		INSERT INTO medical_records (patient_id, doctor_id, related_appointment_id, record_type, title, description,
		                             record_date, details, is_private, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := db.QueryRowContext(ctx, query,
		r.PatientID, r.DoctorID, r.RelatedAppointmentID, r.RecordType, r.Title, r.Description,
		r.Date, nullableJSON(r.Details), r.IsPrivate, pq.Array(r.Tags),
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by ID
func (db *DB) GetRecord(ctx context.Context, id string) (*MedicalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM medical_records WHERE id = $1`

	r, err := scanRecord(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return r, nil
}

// ListRecords returns a patient's records by date, newest first.
// includePrivate=false hides records flagged private.
func (db *DB) ListRecords(ctx context.Context, patientID string, includePrivate bool) ([]MedicalRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM medical_records
		WHERE patient_id = $1 AND ($2 OR is_private = FALSE)
		ORDER BY record_date DESC`

	rows, err := db.QueryContext(ctx, query, patientID, includePrivate)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]MedicalRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// UpdateRecord applies the non-nil fields of u
func (db *DB) UpdateRecord(ctx context.Context, id string, u RecordUpdate) (*MedicalRecord, error) {
	var tags any
	if u.Tags != nil {
		tags = pq.Array(u.Tags)
	}

	query := `
		UPDATE medical_records
		SET record_type = COALESCE($2, record_type),
		    title = COALESCE($3, title),
		    description = COALESCE($4, description),
		    record_date = COALESCE($5, record_date),
		    details = COALESCE($6, details),
		    is_private = COALESCE($7, is_private),
		    tags = COALESCE($8, tags),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + recordColumns

	r, err := scanRecord(db.QueryRowContext(ctx, query, id,
		u.RecordType, u.Title, u.Description, u.Date, nullableJSON(u.Details), u.IsPrivate, tags,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	return r, nil
}
