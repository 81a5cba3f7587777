// Package sql screens user-supplied free text for SQL injection patterns.
//
// Every query in this codebase is parameterized, so hostile text cannot
// change query structure. Search input is still checked before use: text
// that fingerprints as SQLi is rejected at the service boundary rather than
// echoed into ILIKE patterns.
package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// CheckResult describes an input value that tripped the injection detector.
type CheckResult struct {
	Field       string // Name of the field that failed the check
	Value       string // The value that was checked
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckFreeText runs libinjection's SQLi detector over a user-supplied
// string. Returns nil when the value is clean.
//
// Example:
//
//	result := CheckFreeText("query", "distributed tracing")
//	// result == nil
//
//	result := CheckFreeText("query", "'; DROP TABLE entities--")
//	// result.Fingerprint == "s&1c" (or similar)
func CheckFreeText(field string, value string) *CheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}

	return &CheckResult{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckFields checks a set of named free-text fields and returns one result
// per field that failed. Returns nil when all fields are clean.
func CheckFields(fields map[string]string) []*CheckResult {
	var results []*CheckResult
	for field, value := range fields {
		if result := CheckFreeText(field, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
