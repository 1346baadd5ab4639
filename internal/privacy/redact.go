package privacy

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	// 555-123-4567, (555) 123-4567, 555.123.4567, +1-555-123-4567, 555-1234
	phoneRegex = regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]\d{4}|\b\d{3}[-.\s]\d{4}\b`)

	ssnRegex = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	creditCardRegex = regexp.MustCompile(`\b\d{4}[-\s]\d{4}[-\s]\d{4}[-\s]\d{4}\b`)

	medicalIDRegex = regexp.MustCompile(`\b(MRN|Medical Record|Patient ID|ICD)[-:\s]*[A-Z0-9]{6,}\b`)
)

const maxLogLength = 200

// RedactSensitiveData replaces PII in free text with placeholders
func RedactSensitiveData(text string) string {
	text = emailRegex.ReplaceAllString(text, "[EMAIL]")
	text = phoneRegex.ReplaceAllString(text, "[PHONE]")
	text = ssnRegex.ReplaceAllString(text, "[SSN]")
	text = creditCardRegex.ReplaceAllString(text, "[CARD]")
	text = medicalIDRegex.ReplaceAllString(text, "[MEDICAL_ID]")
	return text
}

// SanitizeForLogging redacts and truncates free text (notes, chat content)
// before it is attached to a log entry
func SanitizeForLogging(text string) string {
	redacted := RedactSensitiveData(text)
	if len(redacted) > maxLogLength {
		return redacted[:maxLogLength-3] + "..."
	}
	return redacted
}

// ContainsPII checks if text contains potential PII
func ContainsPII(text string) bool {
	return emailRegex.MatchString(text) ||
		phoneRegex.MatchString(text) ||
		ssnRegex.MatchString(text) ||
		creditCardRegex.MatchString(text) ||
		medicalIDRegex.MatchString(text)
}

// MaskEmail keeps the first character of the local part and the domain:
// jane.doe@example.com -> j***@example.com
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "[EMAIL]"
	}
	return email[:1] + "***" + email[at:]
}
