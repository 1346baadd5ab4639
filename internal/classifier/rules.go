package classifier

import "strings"

// rule inspects the input and escalates the accumulator. Rules only raise the
// risk level, never lower it.
type rule func(acc *accumulator, symptoms []Symptom, names []string, vitals *VitalSigns)

// rules run in order after the critical short-circuit.
var rules = []rule{
	temperatureRule,
	heartRateRule,
	bloodPressureRule,
	oxygenRule,
	highRiskRule,
	moderateRule,
	conditionHintsRule,
}

type accumulator struct {
	level           RiskLevel
	urgency         Urgency
	recommendations *orderedSet
	conditions      *orderedSet
	actions         *orderedSet
}

func newAccumulator() *accumulator {
	return &accumulator{
		level:           RiskLow,
		urgency:         UrgencyRoutine,
		recommendations: newOrderedSet(),
		conditions:      newOrderedSet(),
		actions:         newOrderedSet(),
	}
}

// escalate raises level (and urgency, when given) if it outranks the current one
func (a *accumulator) escalate(level RiskLevel, urgency Urgency) {
	if level.Rank() > a.level.Rank() {
		a.level = level
	}
	if urgency != "" && urgencyRank(urgency) > urgencyRank(a.urgency) {
		a.urgency = urgency
	}
}

func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyUrgent:
		return 1
	case UrgencyEmergency:
		return 2
	}
	return 0
}

func temperatureRule(acc *accumulator, _ []Symptom, _ []string, v *VitalSigns) {
	if v == nil || v.Temperature == nil {
		return
	}
	switch t := *v.Temperature; {
	case t >= 103:
		acc.escalate(RiskHigh, UrgencyUrgent)
		acc.recommendations.add("High fever requires medical attention within 24 hours")
		acc.conditions.add("Severe infection")
	case t >= 100.4:
		if acc.level == RiskLow {
			acc.escalate(RiskMedium, "")
		}
		acc.recommendations.add("Monitor fever and stay hydrated")
	}
}

func heartRateRule(acc *accumulator, _ []Symptom, _ []string, v *VitalSigns) {
	if v == nil || v.HeartRate == nil {
		return
	}
	hr := *v.HeartRate
	if hr <= 120 && hr >= 50 {
		return
	}
	if acc.level == RiskLow || acc.level == RiskMedium {
		acc.escalate(RiskHigh, UrgencyUrgent)
	}
	acc.recommendations.add("Abnormal heart rate - seek medical attention")
}

func bloodPressureRule(acc *accumulator, _ []Symptom, _ []string, v *VitalSigns) {
	if v == nil || v.BloodPressure == nil {
		return
	}
	bp := v.BloodPressure
	if (bp.Systolic != nil && *bp.Systolic >= 180) || (bp.Diastolic != nil && *bp.Diastolic >= 120) {
		acc.escalate(RiskHigh, UrgencyUrgent)
		acc.recommendations.add("Severely elevated blood pressure - seek immediate care")
		acc.conditions.add("Hypertensive crisis")
	}
}

func oxygenRule(acc *accumulator, _ []Symptom, _ []string, v *VitalSigns) {
	if v == nil || v.OxygenSaturation == nil || *v.OxygenSaturation >= 90 {
		return
	}
	acc.escalate(RiskHigh, UrgencyUrgent)
	acc.recommendations.add("Low oxygen levels - seek immediate medical attention")
	acc.conditions.add("Respiratory distress")
}

func highRiskRule(acc *accumulator, symptoms []Symptom, names []string, _ *VitalSigns) {
	if acc.level != RiskLow || !anySymptom(symptoms, names, highRiskSymptoms, "") {
		return
	}
	acc.escalate(RiskHigh, UrgencyUrgent)
	acc.recommendations.add(
		"Your symptoms require prompt medical evaluation",
		"Schedule an appointment with a doctor today",
	)
}

func moderateRule(acc *accumulator, symptoms []Symptom, names []string, _ *VitalSigns) {
	if acc.level != RiskLow || !anySymptom(symptoms, names, moderateSymptoms, SeverityModerate) {
		return
	}
	acc.escalate(RiskMedium, "")
	acc.recommendations.add(
		"Schedule a medical consultation within 2-3 days",
		"Monitor symptoms for any worsening",
	)
}

// conditionHintsRule adds per-symptom hints regardless of the risk level
func conditionHintsRule(acc *accumulator, _ []Symptom, names []string, _ *VitalSigns) {
	for _, name := range names {
		if strings.Contains(name, "fever") {
			acc.recommendations.add("Stay hydrated and rest")
			acc.conditions.add("Infection", "Viral illness")
		}
		if strings.Contains(name, "cough") {
			acc.recommendations.add("Stay hydrated")
			acc.conditions.add("Respiratory infection")
		}
	}
}

// orderedSet keeps first-insertion order and drops duplicates
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: make(map[string]struct{})}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
