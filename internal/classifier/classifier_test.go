package classifier

import (
	"reflect"
	"testing"
)

func f(v float64) *float64 { return &v }

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name          string
		symptoms      []Symptom
		vitals        *VitalSigns
		wantRisk      RiskLevel
		wantUrgency   Urgency
		wantCondition string
		wantActions   int
	}{
		{
			name:        "chest pain is critical regardless of severity",
			symptoms:    []Symptom{{Name: "chest pain", Severity: SeverityModerate}},
			wantRisk:    RiskCritical,
			wantUrgency: UrgencyEmergency,
			wantActions: 2,
		},
		{
			name:        "severe severity is critical",
			symptoms:    []Symptom{{Name: "itchy ear", Severity: SeveritySevere}},
			wantRisk:    RiskCritical,
			wantUrgency: UrgencyEmergency,
			wantActions: 2,
		},
		{
			name:          "mild cough hits the moderate table",
			symptoms:      []Symptom{{Name: "cough", Severity: SeverityMild}},
			wantRisk:      RiskMedium,
			wantUrgency:   UrgencyRoutine,
			wantCondition: "Respiratory infection",
			wantActions:   1,
		},
		{
			name:          "high temperature escalates to high",
			symptoms:      []Symptom{{Name: "headache", Severity: SeverityMild}},
			vitals:        &VitalSigns{Temperature: f(104)},
			wantRisk:      RiskHigh,
			wantUrgency:   UrgencyUrgent,
			wantCondition: "Severe infection",
			wantActions:   2,
		},
		{
			name:        "moderate severity escalates to medium",
			symptoms:    []Symptom{{Name: "fatigue", Severity: SeverityModerate}},
			wantRisk:    RiskMedium,
			wantUrgency: UrgencyRoutine,
			wantActions: 1,
		},
		{
			name:        "low-grade fever reading is medium",
			symptoms:    []Symptom{{Name: "headache", Severity: SeverityMild}},
			vitals:      &VitalSigns{Temperature: f(100.5)},
			wantRisk:    RiskMedium,
			wantUrgency: UrgencyRoutine,
			wantActions: 1,
		},
		{
			name:        "tachycardia after fever reading is high",
			symptoms:    []Symptom{{Name: "headache", Severity: SeverityMild}},
			vitals:      &VitalSigns{Temperature: f(101), HeartRate: f(130)},
			wantRisk:    RiskHigh,
			wantUrgency: UrgencyUrgent,
			wantActions: 2,
		},
		{
			name:          "hypertensive crisis",
			symptoms:      []Symptom{{Name: "dizziness", Severity: SeverityMild}},
			vitals:        &VitalSigns{BloodPressure: &BloodPressure{Systolic: f(150), Diastolic: f(125)}},
			wantRisk:      RiskHigh,
			wantUrgency:   UrgencyUrgent,
			wantCondition: "Hypertensive crisis",
			wantActions:   2,
		},
		{
			name:          "low oxygen",
			symptoms:      []Symptom{{Name: "tired", Severity: SeverityMild}},
			vitals:        &VitalSigns{OxygenSaturation: f(88)},
			wantRisk:      RiskHigh,
			wantUrgency:   UrgencyUrgent,
			wantCondition: "Respiratory distress",
			wantActions:   2,
		},
		{
			name:        "high-risk keyword",
			symptoms:    []Symptom{{Name: "Persistent Vomiting", Severity: SeverityMild}},
			wantRisk:    RiskHigh,
			wantUrgency: UrgencyUrgent,
			wantActions: 2,
		},
		{
			name:        "nothing matches",
			symptoms:    []Symptom{{Name: "itchy ear", Severity: SeverityMild}},
			wantRisk:    RiskLow,
			wantUrgency: UrgencyRoutine,
			wantActions: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.symptoms, tt.vitals)

			if got.RiskLevel != tt.wantRisk {
				t.Errorf("RiskLevel = %s, want %s", got.RiskLevel, tt.wantRisk)
			}
			if got.Urgency != tt.wantUrgency {
				t.Errorf("Urgency = %s, want %s", got.Urgency, tt.wantUrgency)
			}
			if tt.wantCondition != "" && !contains(got.PossibleConditions, tt.wantCondition) {
				t.Errorf("PossibleConditions = %v, want to include %q", got.PossibleConditions, tt.wantCondition)
			}
			if len(got.ImmediateActions) != tt.wantActions {
				t.Errorf("ImmediateActions = %v, want %d items", got.ImmediateActions, tt.wantActions)
			}
			if len(got.Recommendations) == 0 {
				t.Error("expected at least one recommendation")
			}
		})
	}
}

func TestAssess_CriticalIgnoresVitals(t *testing.T) {
	vitals := &VitalSigns{Temperature: f(105), OxygenSaturation: f(80), HeartRate: f(30)}
	got := Assess([]Symptom{{Name: "Seizure", Severity: SeverityMild}}, vitals)

	if got.RiskLevel != RiskCritical || got.Urgency != UrgencyEmergency {
		t.Fatalf("got %s/%s, want critical/emergency", got.RiskLevel, got.Urgency)
	}
	if len(got.PossibleConditions) != 0 {
		t.Errorf("critical path should not add conditions, got %v", got.PossibleConditions)
	}
}

// "cough" is itself a moderate keyword, so the level is medium, not low.
func TestAssess_CoughHint(t *testing.T) {
	got := Assess([]Symptom{{Name: "cough", Severity: SeverityMild}}, nil)
	if !contains(got.PossibleConditions, "Respiratory infection") {
		t.Fatalf("PossibleConditions = %v", got.PossibleConditions)
	}
	if got.RiskLevel != RiskMedium || got.Urgency != UrgencyRoutine {
		t.Errorf("got %s/%s, want medium/routine", got.RiskLevel, got.Urgency)
	}
	if !contains(got.Recommendations, "Stay hydrated") {
		t.Errorf("Recommendations = %v", got.Recommendations)
	}
}

func TestAssess_ContainmentDirection(t *testing.T) {
	// "fever" does not contain "high fever", so the high-risk rule must not fire.
	got := Assess([]Symptom{{Name: "fever", Severity: SeverityMild}}, nil)
	if got.RiskLevel != RiskLow {
		t.Errorf("RiskLevel = %s, want low", got.RiskLevel)
	}
	if !reflect.DeepEqual(got.PossibleConditions, []string{"Infection", "Viral illness"}) {
		t.Errorf("PossibleConditions = %v", got.PossibleConditions)
	}

	// The description is never inspected.
	got = Assess([]Symptom{{Name: "ache", Severity: SeverityMild, Description: "chest pain"}}, nil)
	if got.RiskLevel != RiskLow {
		t.Errorf("description matched: RiskLevel = %s", got.RiskLevel)
	}
}

func TestAssess_Deduplicates(t *testing.T) {
	got := Assess([]Symptom{
		{Name: "fever", Severity: SeverityMild},
		{Name: "night fever", Severity: SeverityMild},
	}, nil)

	want := []string{"Stay hydrated and rest"}
	if !reflect.DeepEqual(got.Recommendations, want) {
		t.Errorf("Recommendations = %v, want %v", got.Recommendations, want)
	}
	if len(got.PossibleConditions) != 2 {
		t.Errorf("PossibleConditions = %v, want 2 unique", got.PossibleConditions)
	}
}

func TestAssess_Deterministic(t *testing.T) {
	symptoms := []Symptom{
		{Name: "cough", Severity: SeverityModerate},
		{Name: "high fever", Severity: SeverityMild},
	}
	vitals := &VitalSigns{Temperature: f(101), HeartRate: f(45)}

	first := Assess(symptoms, vitals)
	for i := 0; i < 10; i++ {
		if got := Assess(symptoms, vitals); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestAssess_Monotonic(t *testing.T) {
	// Each vital rule alone yields high; combined must never be lower.
	single := []*VitalSigns{
		{Temperature: f(103)},
		{HeartRate: f(121)},
		{BloodPressure: &BloodPressure{Systolic: f(181)}},
		{OxygenSaturation: f(85)},
	}
	symptoms := []Symptom{{Name: "rash", Severity: SeverityMild}}

	combined := &VitalSigns{}
	for _, v := range single {
		got := Assess(symptoms, v)
		if got.RiskLevel != RiskHigh {
			t.Fatalf("single rule %+v: RiskLevel = %s", v, got.RiskLevel)
		}
		if v.Temperature != nil {
			combined.Temperature = v.Temperature
		}
		if v.HeartRate != nil {
			combined.HeartRate = v.HeartRate
		}
		if v.BloodPressure != nil {
			combined.BloodPressure = v.BloodPressure
		}
		if v.OxygenSaturation != nil {
			combined.OxygenSaturation = v.OxygenSaturation
		}
	}

	if got := Assess(symptoms, combined); got.RiskLevel.Rank() < RiskHigh.Rank() {
		t.Errorf("combined RiskLevel = %s, want >= high", got.RiskLevel)
	}
}

func TestRiskLevel_Rank(t *testing.T) {
	order := []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if _, ok := ParseRiskLevel("bogus"); ok {
		t.Error("ParseRiskLevel accepted bogus")
	}
	if r, ok := ParseRiskLevel("HIGH"); !ok || r != RiskHigh {
		t.Errorf("ParseRiskLevel(HIGH) = %s, %v", r, ok)
	}
}
