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

var ErrDoctorNotFound = errors.New("doctor not found")

type AppointmentType string

const (
	AppointmentConsultation   AppointmentType = "consultation"
	AppointmentFollowUp       AppointmentType = "follow-up"
	AppointmentEmergency      AppointmentType = "emergency"
	AppointmentRoutineCheckup AppointmentType = "routine-checkup"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentConsultation, AppointmentFollowUp, AppointmentEmergency, AppointmentRoutineCheckup:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCancelled, AppointmentCompleted, AppointmentNoShow:
		return true
	}
	return false
}

// Medication is one line of a prescription
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Prescription is stored as JSONB on the appointment
type Prescription struct {
	Medications  []Medication `json:"medications"`
	Advice       string       `json:"advice,omitempty"`
	FollowUpDate *time.Time   `json:"followUpDate,omitempty"`
}

// Appointment is a booking between a patient and a doctor
type Appointment struct {
	ID                 string            `json:"id"`
	PatientID          string            `json:"patientId"`
	DoctorID           string            `json:"doctorId"`
	AppointmentDate    time.Time         `json:"appointmentDate"`
	AppointmentTime    string            `json:"appointmentTime"`
	Duration           int               `json:"duration"`
	Type               AppointmentType   `json:"type"`
	Status             AppointmentStatus `json:"status"`
	Reason             string            `json:"reason"`
	Symptoms           []string          `json:"symptoms"`
	Notes              *string           `json:"notes,omitempty"`
	Prescription       *Prescription     `json:"prescription,omitempty"`
	CancelledBy        *string           `json:"cancelledBy,omitempty"`
	CancellationReason *string           `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// HasParticipant reports whether userID is the patient or the doctor
func (a *Appointment) HasParticipant(userID string) bool {
	return a.PatientID == userID || a.DoctorID == userID
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, appointment_time, duration, type, status,
	reason, symptoms, notes, prescription, cancelled_by, cancellation_reason, cancelled_at, created_at, updated_at`

func scanAppointment(row rowScanner) (*Appointment, error) {
	a := &Appointment{}
	var prescription []byte

	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.AppointmentTime, &a.Duration, &a.Type, &a.Status,
		&a.Reason, pq.Array(&a.Symptoms), &a.Notes, &prescription,
		&a.CancelledBy, &a.CancellationReason, &a.CancelledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.Symptoms == nil {
		a.Symptoms = []string{}
	}
	if len(prescription) > 0 {
		a.Prescription = &Prescription{}
		if err := json.Unmarshal(prescription, a.Prescription); err != nil {
			return nil, fmt.Errorf("failed to decode prescription: %w", err)
		}
	}
	return a, nil
}

// CreateAppointment books an appointment. The doctor must be an active doctor.
func (db *DB) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.Symptoms == nil {
		a.Symptoms = []string{}
	}

	query := `
		INSERT INTO appointments (patient_id, doctor_id, appointment_date, appointment_time, duration, type, status, reason, symptoms, notes)
		SELECT $1::uuid, u.id, $3::date, $4::text, $5::int, $6::text, $7::text, $8::text, $9::text[], $10::text
		FROM users u
		WHERE u.id = $2::uuid AND u.role = 'doctor' AND u.is_active = TRUE
		RETURNING id, created_at, updated_at
	`

	err := db.QueryRowContext(ctx, query,
		a.PatientID, a.DoctorID, a.AppointmentDate, a.AppointmentTime, a.Duration, a.Type, a.Status,
		a.Reason, pq.Array(a.Symptoms), a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDoctorNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// GetAppointment retrieves an appointment by ID
func (db *DB) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	a, err := scanAppointment(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return a, nil
}

// ListAppointments returns a user's appointments, latest date first.
// asDoctor selects the doctor_id column instead of patient_id.
func (db *DB) ListAppointments(ctx context.Context, userID string, asDoctor bool) ([]Appointment, error) {
	column := "patient_id"
	if asDoctor {
		column = "doctor_id"
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE ` + column + ` = $1
		ORDER BY appointment_date DESC, appointment_time DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	appointments := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, *a)
	}
	return appointments, rows.Err()
}

// UpdateAppointmentStatus sets the status. Cancellation also records who, why and when.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id string, status AppointmentStatus, byUserID string, reason *string) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $2,
		    cancelled_by = CASE WHEN $2 = 'cancelled' THEN $3::uuid ELSE cancelled_by END,
		    cancellation_reason = CASE WHEN $2 = 'cancelled' THEN $4 ELSE cancellation_reason END,
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appointmentColumns

	a, err := scanAppointment(db.QueryRowContext(ctx, query, id, status, byUserID, reason))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return a, nil
}

// SetPrescription stores the prescription and completes the appointment
func (db *DB) SetPrescription(ctx context.Context, id string, p Prescription) (*Appointment, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prescription: %w", err)
	}

	query := `
		UPDATE appointments
		SET prescription = $2, status = 'completed', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appointmentColumns

	a, err := scanAppointment(db.QueryRowContext(ctx, query, id, raw))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set prescription: %w", err)
	}
	return a, nil
}
