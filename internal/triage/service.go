package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/classifier"
	"github.com/themobileprof/telecare-be/internal/privacy"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

// Status is the review state of a triage.
//
//	pending → reviewed
//	pending → completed
//
// There is no transition back to pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewed  Status = "reviewed"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusCompleted:
		return true
	}
	return false
}

// Triage is one patient submission with its computed assessment and review
type Triage struct {
	ID              string                 `json:"id"`
	PatientID       string                 `json:"patientId"`
	Symptoms        []classifier.Symptom   `json:"symptoms"`
	VitalSigns      *classifier.VitalSigns `json:"vitalSigns,omitempty"`
	Assessment      classifier.Assessment  `json:"assessment"`
	AdditionalNotes *string                `json:"additionalNotes,omitempty"`
	Status          Status                 `json:"status"`
	ReviewedBy      *string                `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time             `json:"reviewedAt,omitempty"`
	DoctorNotes     *string                `json:"doctorNotes,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Review is the update applied by a doctor
type Review struct {
	ReviewedBy  string
	ReviewedAt  time.Time
	DoctorNotes string
	Status      Status
}

// Filter narrows ListAll
type Filter struct {
	Status    Status
	RiskLevel classifier.RiskLevel
}

// Stats aggregates triage counts
type Stats struct {
	Total       int            `json:"total"`
	ByRiskLevel map[string]int `json:"byRiskLevel"`
	ByStatus    map[string]int `json:"byStatus"`
	ByUrgency   map[string]int `json:"byUrgency"`
}

// Page is a window of triages, newest first
type Page struct {
	Triages []Triage `json:"triages"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
}

// Store persists triages. Create fills ID and timestamps.
// UpdateReview returns ErrNotFound for an unknown id.
type Store interface {
	CreateTriage(ctx context.Context, t *Triage) error
	GetTriage(ctx context.Context, id string) (*Triage, error)
	UpdateTriageReview(ctx context.Context, id string, r Review) (*Triage, error)
	ListTriages(ctx context.Context, patientID string, f Filter, limit, offset int) ([]Triage, int, error)
	TriageStats(ctx context.Context) (*Stats, error)
}

// Requester identifies the caller of a read operation
type Requester struct {
	UserID string
	Role   auth.Role
}

// SubmitInput is a patient's symptom report
type SubmitInput struct {
	Symptoms        []classifier.Symptom   `json:"symptoms"`
	VitalSigns      *classifier.VitalSigns `json:"vitalSigns"`
	AdditionalNotes *string                `json:"additionalNotes"`
}

// ReviewInput is a doctor's review. Status defaults to reviewed.
type ReviewInput struct {
	DoctorNotes string `json:"doctorNotes"`
	Status      Status `json:"status"`
}

// Assessor is the observer hook called after each new assessment
type Assessor interface {
	ObserveAssessment(risk classifier.RiskLevel)
}

// Service runs the triage lifecycle
type Service struct {
	store    Store
	observer Assessor
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a triage service. observer may be nil.
func NewService(store Store, observer Assessor, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit validates a symptom report, assesses it and stores it as pending
func (s *Service) Submit(ctx context.Context, patientID string, in SubmitInput) (*Triage, error) {
	if err := validateSymptoms(in.Symptoms); err != nil {
		return nil, err
	}

	t := &Triage{
		PatientID:       patientID,
		Symptoms:        in.Symptoms,
		VitalSigns:      in.VitalSigns,
		Assessment:      classifier.Assess(in.Symptoms, in.VitalSigns),
		AdditionalNotes: in.AdditionalNotes,
		Status:          StatusPending,
	}

	if err := s.store.CreateTriage(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create triage: %w", err)
	}

	if s.observer != nil {
		s.observer.ObserveAssessment(t.Assessment.RiskLevel)
	}

	fields := []zap.Field{
		zap.String("triage_id", t.ID),
		zap.String("patient_id", patientID),
		zap.String("risk_level", string(t.Assessment.RiskLevel)),
		zap.Int("symptoms", len(t.Symptoms)),
	}
	if t.AdditionalNotes != nil {
		fields = append(fields, zap.String("notes", privacy.SanitizeForLogging(*t.AdditionalNotes)))
	}
	s.logger.Info("triage assessed", fields...)

	return t, nil
}

// Review records a doctor's notes and moves the triage to status
// (reviewed unless another terminal status is given). Re-reviewing an
// already reviewed triage overwrites the previous review.
func (s *Service) Review(ctx context.Context, triageID, doctorID string, in ReviewInput) (*Triage, error) {
	status := in.Status
	if status == "" {
		status = StatusReviewed
	}
	if status != StatusReviewed && status != StatusCompleted {
		return nil, &ValidationError{Fields: []string{"status must be reviewed or completed"}}
	}

	existing, err := s.store.GetTriage(ctx, triageID)
	if err != nil {
		return nil, err
	}

	reviewedAt := s.now()
	if reviewedAt.Before(existing.CreatedAt) {
		reviewedAt = existing.CreatedAt
	}

	updated, err := s.store.UpdateTriageReview(ctx, triageID, Review{
		ReviewedBy:  doctorID,
		ReviewedAt:  reviewedAt,
		DoctorNotes: in.DoctorNotes,
		Status:      status,
	})
	if err != nil {
		return nil, err
	}

	if existing.Status != StatusPending {
		s.logger.Warn("triage re-reviewed",
			zap.String("triage_id", triageID),
			zap.String("previous_status", string(existing.Status)),
			zap.String("doctor_id", doctorID),
		)
	}

	return updated, nil
}

// Get returns a triage visible to the requester
func (s *Service) Get(ctx context.Context, triageID string, req Requester) (*Triage, error) {
	t, err := s.store.GetTriage(ctx, triageID)
	if err != nil {
		return nil, err
	}
	if !req.Role.IsStaff() && t.PatientID != req.UserID {
		return nil, ErrForbidden
	}
	return t, nil
}

// ListMine pages through a patient's own triages
func (s *Service) ListMine(ctx context.Context, patientID string, page, limit int) (*Page, error) {
	return s.list(ctx, patientID, Filter{}, page, limit)
}

// ListAll pages through every triage. Doctors and admins only.
func (s *Service) ListAll(ctx context.Context, req Requester, f Filter, page, limit int) (*Page, error) {
	if !req.Role.IsStaff() {
		return nil, ErrForbidden
	}
	return s.list(ctx, "", f, page, limit)
}

// Stats aggregates counts by risk level, status and urgency
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.store.TriageStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get triage stats: %w", err)
	}
	return stats, nil
}

func (s *Service) list(ctx context.Context, patientID string, f Filter, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	triages, total, err := s.store.ListTriages(ctx, patientID, f, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list triages: %w", err)
	}

	return &Page{
		Triages: triages,
		Total:   total,
		Page:    page,
		Pages:   (total + limit - 1) / limit,
	}, nil
}

func validateSymptoms(symptoms []classifier.Symptom) error {
	if len(symptoms) == 0 {
		return &ValidationError{Fields: []string{"symptoms: at least one symptom is required"}}
	}

	var fields []string
	for i, sym := range symptoms {
		if strings.TrimSpace(sym.Name) == "" {
			fields = append(fields, fmt.Sprintf("symptoms[%d].name: required", i))
		}
		if !sym.Severity.Valid() {
			fields = append(fields, fmt.Sprintf("symptoms[%d].severity: must be mild, moderate or severe", i))
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
