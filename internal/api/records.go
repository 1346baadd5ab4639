package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/triage"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

// RecordStore is the persistence used by RecordHandler
type RecordStore interface {
	CreateRecord(ctx context.Context, r *db.MedicalRecord) error
	GetRecord(ctx context.Context, id string) (*db.MedicalRecord, error)
	ListRecords(ctx context.Context, patientID string, includePrivate bool) ([]db.MedicalRecord, error)
	UpdateRecord(ctx context.Context, id string, u db.RecordUpdate) (*db.MedicalRecord, error)
}

// RecordHandler handles medical records. Doctors write, patients read
// their own non-private entries.
type RecordHandler struct {
	store  RecordStore
	logger *zap.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(store RecordStore, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{store: store, logger: logger}
}

type createRecordRequest struct {
	PatientID            string          `json:"patientId" binding:"required"`
	RelatedAppointmentID *string         `json:"relatedAppointmentId"`
	RecordType           db.RecordType   `json:"recordType" binding:"required"`
	Title                string          `json:"title" binding:"required"`
	Description          string          `json:"description"`
	Date                 *time.Time      `json:"date"`
	Details              json.RawMessage `json:"details"`
	IsPrivate            bool            `json:"isPrivate"`
	Tags                 []string        `json:"tags"`
}

type updateRecordRequest struct {
	RecordType  *db.RecordType  `json:"recordType"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Date        *time.Time      `json:"date"`
	Details     json.RawMessage `json:"details"`
	IsPrivate   *bool           `json:"isPrivate"`
	Tags        []string        `json:"tags"`
}

// Create writes a record for a patient
// POST /api/records
func (h *RecordHandler) Create(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var invalid []string
	patientID, err := parseUUID(req.PatientID)
	if err != nil {
		invalid = append(invalid, "patientId: must be a valid id")
	}
	if !req.RecordType.Valid() {
		invalid = append(invalid, "recordType: unknown record type")
	}
	var appointmentID *string
	if req.RelatedAppointmentID != nil {
		id, err := parseUUID(*req.RelatedAppointmentID)
		if err != nil {
			invalid = append(invalid, "relatedAppointmentId: must be a valid id")
		}
		appointmentID = &id
	}
	if len(invalid) > 0 {
		respondError(c, h.logger, &triage.ValidationError{Fields: invalid})
		return
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}
	doctorID := middleware.GetUserID(c)

	r := &db.MedicalRecord{
		PatientID:            patientID,
		DoctorID:             &doctorID,
		RelatedAppointmentID: appointmentID,
		RecordType:           req.RecordType,
		Title:                req.Title,
		Description:          req.Description,
		Date:                 date,
		Details:              req.Details,
		IsPrivate:            req.IsPrivate,
		Tags:                 req.Tags,
	}
	if err := h.store.CreateRecord(c.Request.Context(), r); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("medical record created",
		zap.String("record_id", r.ID),
		zap.String("patient_id", r.PatientID),
		zap.String("record_type", string(r.RecordType)),
	)
	c.JSON(http.StatusCreated, gin.H{"message": "Record created", "record": r})
}

// ForPatient lists a patient's records. Patients may only list their own
// and never see private ones.
// GET /api/records/patient/:patientId
func (h *RecordHandler) ForPatient(c *gin.Context) {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	isPatient := middleware.GetRole(c) == auth.RolePatient
	if isPatient && patientID != middleware.GetUserID(c) {
		respondError(c, h.logger, triage.ErrForbidden)
		return
	}

	records, err := h.store.ListRecords(c.Request.Context(), patientID, !isPatient)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Mine lists the caller's own records
// GET /api/records/my-records
func (h *RecordHandler) Mine(c *gin.Context) {
	records, err := h.store.ListRecords(c.Request.Context(), middleware.GetUserID(c), true)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Get returns one record
// GET /api/records/:id
func (h *RecordHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	r, err := h.store.GetRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if middleware.GetRole(c) == auth.RolePatient && (r.PatientID != middleware.GetUserID(c) || r.IsPrivate) {
		respondError(c, h.logger, triage.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": r})
}

// Update edits a record
// PUT /api/records/:id
func (h *RecordHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.RecordType != nil && !req.RecordType.Valid() {
		respondError(c, h.logger, &triage.ValidationError{Fields: []string{"recordType: unknown record type"}})
		return
	}

	r, err := h.store.UpdateRecord(c.Request.Context(), id, db.RecordUpdate{
		RecordType:  req.RecordType,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Details:     req.Details,
		IsPrivate:   req.IsPrivate,
		Tags:        req.Tags,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record updated", "record": r})
}
