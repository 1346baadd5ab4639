package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/triage"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

const defaultAppointmentMinutes = 30

// AppointmentStore is the persistence used by AppointmentHandler
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a *db.Appointment) error
	GetAppointment(ctx context.Context, id string) (*db.Appointment, error)
	ListAppointments(ctx context.Context, userID string, asDoctor bool) ([]db.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status db.AppointmentStatus, byUserID string, reason *string) (*db.Appointment, error)
	SetPrescription(ctx context.Context, id string, p db.Prescription) (*db.Appointment, error)
	ListVerifiedDoctors(ctx context.Context) ([]db.User, error)
}

// AppointmentObserver counts appointment lifecycle events
type AppointmentObserver interface {
	ObserveAppointmentStatus(status string)
	ObservePrescription()
}

// AppointmentHandler handles booking, status changes and prescriptions
type AppointmentHandler struct {
	store    AppointmentStore
	observer AppointmentObserver
	logger   *zap.Logger
}

// NewAppointmentHandler creates a new appointment handler. observer may be nil.
func NewAppointmentHandler(store AppointmentStore, observer AppointmentObserver, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{store: store, observer: observer, logger: logger}
}

type createAppointmentRequest struct {
	DoctorID        string             `json:"doctorId" binding:"required"`
	AppointmentDate string             `json:"appointmentDate" binding:"required"`
	AppointmentTime string             `json:"appointmentTime" binding:"required"`
	Duration        int                `json:"duration" binding:"omitempty,min=5,max=240"`
	Type            db.AppointmentType `json:"type"`
	Reason          string             `json:"reason" binding:"required"`
	Symptoms        []string           `json:"symptoms"`
	Notes           *string            `json:"notes"`
}

type statusRequest struct {
	Status             db.AppointmentStatus `json:"status" binding:"required"`
	CancellationReason *string              `json:"cancellationReason"`
}

type medicationRequest struct {
	Name         string `json:"name" binding:"required"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type prescriptionRequest struct {
	Medications  []medicationRequest `json:"medications" binding:"required,min=1,dive"`
	Advice       string              `json:"advice"`
	FollowUpDate *time.Time          `json:"followUpDate"`
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Create books an appointment with a verified doctor
// POST /api/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var invalid []string
	doctorID, err := parseUUID(req.DoctorID)
	if err != nil {
		invalid = append(invalid, "doctorId: must be a valid id")
	}
	date, err := parseDate(req.AppointmentDate)
	if err != nil {
		invalid = append(invalid, "appointmentDate: must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", req.AppointmentTime); err != nil {
		invalid = append(invalid, "appointmentTime: must be HH:MM")
	}
	if req.Type == "" {
		req.Type = db.AppointmentConsultation
	}
	if !req.Type.Valid() {
		invalid = append(invalid, "type: must be consultation, follow-up, emergency or routine-checkup")
	}
	if len(invalid) > 0 {
		respondError(c, h.logger, &triage.ValidationError{Fields: invalid})
		return
	}
	if req.Duration == 0 {
		req.Duration = defaultAppointmentMinutes
	}

	a := &db.Appointment{
		PatientID:       middleware.GetUserID(c),
		DoctorID:        doctorID,
		AppointmentDate: date,
		AppointmentTime: req.AppointmentTime,
		Duration:        req.Duration,
		Type:            req.Type,
		Status:          db.AppointmentPending,
		Reason:          strings.TrimSpace(req.Reason),
		Symptoms:        req.Symptoms,
		Notes:           req.Notes,
	}
	if err := h.store.CreateAppointment(c.Request.Context(), a); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.observeStatus(a.Status)
	h.logger.Info("appointment booked",
		zap.String("appointment_id", a.ID),
		zap.String("patient_id", a.PatientID),
		zap.String("doctor_id", a.DoctorID),
	)
	c.JSON(http.StatusCreated, gin.H{"message": "Appointment created", "appointment": a})
}

// Mine lists the caller's appointments. Doctors see the ones booked with them.
// GET /api/appointments/my-appointments
func (h *AppointmentHandler) Mine(c *gin.Context) {
	asDoctor := middleware.GetRole(c) == auth.RoleDoctor
	appointments, err := h.store.ListAppointments(c.Request.Context(), middleware.GetUserID(c), asDoctor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appointments})
}

// Doctors lists verified, active doctors available for booking
// GET /api/appointments/doctors
func (h *AppointmentHandler) Doctors(c *gin.Context) {
	doctors, err := h.store.ListVerifiedDoctors(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctors": doctors})
}

// UpdateStatus moves an appointment to a new status. Only its patient,
// its doctor or an admin may do this.
// PUT /api/appointments/:id/status
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !req.Status.Valid() {
		respondError(c, h.logger, &triage.ValidationError{
			Fields: []string{"status: must be pending, confirmed, cancelled, completed or no-show"},
		})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	existing, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !existing.HasParticipant(userID) && middleware.GetRole(c) != auth.RoleAdmin {
		respondError(c, h.logger, triage.ErrForbidden)
		return
	}

	updated, err := h.store.UpdateAppointmentStatus(ctx, id, req.Status, userID, req.CancellationReason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.observeStatus(updated.Status)
	h.logger.Info("appointment status changed",
		zap.String("appointment_id", id),
		zap.String("from", string(existing.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("by", userID),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Appointment updated", "appointment": updated})
}

// Prescribe attaches a prescription and completes the appointment. Only the
// appointment's doctor may prescribe.
// PUT /api/appointments/:id/prescription
func (h *AppointmentHandler) Prescribe(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req prescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	existing, err := h.store.GetAppointment(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if existing.DoctorID != middleware.GetUserID(c) {
		respondError(c, h.logger, triage.ErrForbidden)
		return
	}

	p := db.Prescription{Advice: req.Advice, FollowUpDate: req.FollowUpDate}
	for _, m := range req.Medications {
		p.Medications = append(p.Medications, db.Medication(m))
	}

	updated, err := h.store.SetPrescription(ctx, id, p)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if h.observer != nil {
		h.observer.ObservePrescription()
	}
	h.observeStatus(updated.Status)
	c.JSON(http.StatusOK, gin.H{"message": "Prescription added", "appointment": updated})
}

func (h *AppointmentHandler) observeStatus(status db.AppointmentStatus) {
	if h.observer != nil {
		h.observer.ObserveAppointmentStatus(string(status))
	}
}
