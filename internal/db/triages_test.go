package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/themobileprof/telecare-be/internal/classifier"
	"github.com/themobileprof/telecare-be/internal/triage"
)

var triageCols = []string{
	"id", "patient_id", "symptoms", "vital_signs", "assessment", "additional_notes",
	"status", "reviewed_by", "reviewed_at", "doctor_notes", "created_at", "updated_at",
}

const (
	symptomsJSON   = `[{"name":"cough","severity":"mild"}]`
	assessmentJSON = `{"riskLevel":"medium","urgency":"routine","recommendations":["Stay hydrated"],"possibleConditions":["Respiratory infection"],"immediateActions":[]}`
)

func TestDB_CreateTriage(t *testing.T) {
	db, mock := newMock(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO triages`).
		WithArgs("p1", sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "medium", "routine", nil, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("t1", created, created))

	tr := &triage.Triage{
		PatientID:  "p1",
		Symptoms:   []classifier.Symptom{{Name: "cough", Severity: classifier.SeverityMild}},
		Assessment: classifier.Assessment{RiskLevel: classifier.RiskMedium, Urgency: classifier.UrgencyRoutine},
		Status:     triage.StatusPending,
	}
	if err := db.CreateTriage(context.Background(), tr); err != nil {
		t.Fatalf("CreateTriage: %v", err)
	}
	if tr.ID != "t1" || !tr.CreatedAt.Equal(created) {
		t.Errorf("triage not filled: %+v", tr)
	}
}

func TestDB_GetTriage(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM triages WHERE id = \$1`).WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(triageCols).AddRow(
			"t1", "p1", []byte(symptomsJSON), []byte(`{"temperature":100.5}`), []byte(assessmentJSON), nil,
			"pending", nil, nil, nil, now, now,
		))
	mock.ExpectQuery(`FROM triages WHERE id = \$1`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(triageCols))

	tr, err := db.GetTriage(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetTriage: %v", err)
	}
	if len(tr.Symptoms) != 1 || tr.Symptoms[0].Name != "cough" {
		t.Errorf("symptoms = %+v", tr.Symptoms)
	}
	if tr.VitalSigns == nil || tr.VitalSigns.Temperature == nil || *tr.VitalSigns.Temperature != 100.5 {
		t.Errorf("vitals = %+v", tr.VitalSigns)
	}
	if tr.Assessment.RiskLevel != classifier.RiskMedium || tr.Assessment.PossibleConditions[0] != "Respiratory infection" {
		t.Errorf("assessment = %+v", tr.Assessment)
	}
	if tr.ReviewedBy != nil {
		t.Errorf("ReviewedBy = %v, want nil", tr.ReviewedBy)
	}

	if _, err := db.GetTriage(context.Background(), "missing"); !errors.Is(err, triage.ErrNotFound) {
		t.Errorf("err = %v, want triage.ErrNotFound", err)
	}
}

func TestDB_UpdateTriageReview(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE triages`).
		WithArgs("t1", "d1", now, "rest", "reviewed").
		WillReturnRows(sqlmock.NewRows(triageCols).AddRow(
			"t1", "p1", []byte(symptomsJSON), nil, []byte(assessmentJSON), nil,
			"reviewed", "d1", now, "rest", now, now,
		))

	tr, err := db.UpdateTriageReview(context.Background(), "t1", triage.Review{
		ReviewedBy: "d1", ReviewedAt: now, DoctorNotes: "rest", Status: triage.StatusReviewed,
	})
	if err != nil {
		t.Fatalf("UpdateTriageReview: %v", err)
	}
	if tr.Status != triage.StatusReviewed || tr.ReviewedBy == nil || *tr.ReviewedBy != "d1" || tr.VitalSigns != nil {
		t.Errorf("triage = %+v", tr)
	}
}

func TestDB_ListTriages(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM triages`).WithArgs("", "", "critical").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY created_at DESC`).WithArgs("", "", "critical", 10, 0).
		WillReturnRows(sqlmock.NewRows(triageCols).AddRow(
			"t9", "p2", []byte(`[{"name":"seizure","severity":"mild"}]`), nil,
			[]byte(`{"riskLevel":"critical","urgency":"emergency"}`), nil,
			"pending", nil, nil, nil, now, now,
		))

	list, total, err := db.ListTriages(context.Background(), "", triage.Filter{RiskLevel: classifier.RiskCritical}, 10, 0)
	if err != nil {
		t.Fatalf("ListTriages: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].Assessment.Urgency != classifier.UrgencyEmergency {
		t.Errorf("total %d list %+v", total, list)
	}
}

func TestDB_TriageStats(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`GROUP BY risk_level, status, urgency`).
		WillReturnRows(sqlmock.NewRows([]string{"risk_level", "status", "urgency", "count"}).
			AddRow("high", "pending", "urgent", 2).
			AddRow("high", "reviewed", "urgent", 1).
			AddRow("low", "pending", "routine", 4))

	stats, err := db.TriageStats(context.Background())
	if err != nil {
		t.Fatalf("TriageStats: %v", err)
	}
	if stats.Total != 7 || stats.ByRiskLevel["high"] != 3 || stats.ByStatus["pending"] != 6 || stats.ByUrgency["routine"] != 4 {
		t.Errorf("stats = %+v", stats)
	}
}
