package filter

import (
	"strings"
)

// sensitiveKeywords lists financial and identity terms, in English and
// Hindi, that must never reach the answer sheet.
var sensitiveKeywords = []string{
	"phone", "number", "address", "password", "pancard", "aadhar", "account",
	"credit card", "debit card", "pin", "otp", "ssn", "cvv", "date of birth",
	"जन्मतिथि", "पैन कार्ड", "आधार", "खाता", "पासवर्ड", "ओटीपी", "पिन",
}

// ContainsSensitive reports whether text mentions personally identifiable
// or financial information. Matching is a case-insensitive substring scan.
func ContainsSensitive(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
