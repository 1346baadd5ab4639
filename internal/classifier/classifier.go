package classifier

import (
	"strings"
)

// Severity is the patient-reported intensity of a single symptom
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// RiskLevel is the ordered classification attached to an assessment
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels: low < medium < high < critical.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// ParseRiskLevel validates a risk level string
func ParseRiskLevel(s string) (RiskLevel, bool) {
	r := RiskLevel(strings.ToLower(s))
	return r, r.Rank() >= 0
}

// Urgency is the recommended response speed
type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// Symptom is one patient-reported symptom
type Symptom struct {
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Duration    string   `json:"duration,omitempty"`
	Description string   `json:"description,omitempty"`
}

// BloodPressure holds a single blood pressure reading in mmHg
type BloodPressure struct {
	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
}

// VitalSigns is an optional bag of readings. A nil field means "not measured".
type VitalSigns struct {
	Temperature      *float64       `json:"temperature,omitempty"` // °F
	HeartRate        *float64       `json:"heartRate,omitempty"`
	BloodPressure    *BloodPressure `json:"bloodPressure,omitempty"`
	RespiratoryRate  *float64       `json:"respiratoryRate,omitempty"`
	OxygenSaturation *float64       `json:"oxygenSaturation,omitempty"`
}

// Assessment is the computed risk output for a set of symptoms.
// It is a value: built once by Assess and never mutated afterwards.
type Assessment struct {
	RiskLevel          RiskLevel `json:"riskLevel"`
	Urgency            Urgency   `json:"urgency"`
	Recommendations    []string  `json:"recommendations"`
	PossibleConditions []string  `json:"possibleConditions"`
	ImmediateActions   []string  `json:"immediateActions"`
}

var (
	criticalSymptoms = []string{
		"chest pain", "difficulty breathing", "severe bleeding",
		"loss of consciousness", "seizure", "severe head injury",
		"stroke symptoms", "severe allergic reaction", "suicide thoughts",
	}

	highRiskSymptoms = []string{
		"high fever", "severe abdominal pain", "persistent vomiting",
		"severe headache", "confusion", "severe pain",
		"blood in stool", "blood in urine",
	}

	moderateSymptoms = []string{
		"moderate fever", "cough", "body aches", "fatigue",
		"nausea", "diarrhea", "moderate pain", "rash", "sore throat",
	}
)

// Assess computes the assessment for symptoms and optional vital signs.
// Callers validate input first; Assess never fails.
func Assess(symptoms []Symptom, vitals *VitalSigns) Assessment {
	names := make([]string, len(symptoms))
	for i, s := range symptoms {
		names[i] = strings.ToLower(s.Name)
	}

	// Critical findings short-circuit every other rule
	if anySymptom(symptoms, names, criticalSymptoms, SeveritySevere) {
		return Assessment{
			RiskLevel: RiskCritical,
			Urgency:   UrgencyEmergency,
			Recommendations: []string{
				"Seek immediate emergency medical attention",
				"Call emergency services or go to nearest ER",
			},
			PossibleConditions: []string{},
			ImmediateActions: []string{
				"Call 911 or local emergency number",
				"Do not drive yourself",
			},
		}
	}

	acc := newAccumulator()
	for _, r := range rules {
		r(acc, symptoms, names, vitals)
	}

	if len(acc.recommendations.items) == 0 {
		acc.recommendations.add(
			"Monitor your symptoms",
			"Rest and maintain good hydration",
			"Consult a doctor if symptoms worsen",
		)
	}

	switch acc.level {
	case RiskHigh:
		acc.actions.add("Contact your doctor today", "Monitor symptoms closely")
	case RiskMedium:
		acc.actions.add("Schedule a doctor appointment within 2-3 days")
	}

	return Assessment{
		RiskLevel:          acc.level,
		Urgency:            acc.urgency,
		Recommendations:    acc.recommendations.items,
		PossibleConditions: acc.conditions.items,
		ImmediateActions:   acc.actions.items,
	}
}

// anySymptom reports whether any symptom name contains one of keywords,
// or (when severity is non-empty) any symptom carries that severity.
func anySymptom(symptoms []Symptom, names, keywords []string, severity Severity) bool {
	for i, name := range names {
		if severity != "" && symptoms[i].Severity == severity {
			return true
		}
		if containsAny(name, keywords) {
			return true
		}
	}
	return false
}

// containsAny checks name against keywords using name-contains-keyword
func containsAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
