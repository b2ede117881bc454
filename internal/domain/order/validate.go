package order

import (
	"fmt"
	"strings"

	"github.com/kiseto/order-intake/internal/domain/catalog"
)

// FailureCode identifies a validation rule that a draft violated.
type FailureCode string

const (
	RequiredFieldMissing FailureCode = "required_field_missing"
	InvalidPostalCode    FailureCode = "invalid_postal_code"
	InvalidEmailFormat   FailureCode = "invalid_email_format"
	EmptyOrder           FailureCode = "empty_order"
)

// Failure is one violated validation rule, addressed to a single field.
type Failure struct {
	Field   string      `json:"field"`
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// ValidationError carries every rule a draft violated. Rules are evaluated
// independently so the caller always sees the complete list.
type ValidationError struct {
	Failures []Failure
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks the draft against every intake rule and returns all
// violations. A nil result means the draft may advance to confirmation.
func Validate(d *Draft, c *catalog.Catalog) []Failure {
	var failures []Failure

	if strings.TrimSpace(d.Name) == "" {
		failures = append(failures, Failure{
			Field:   "name",
			Code:    RequiredFieldMissing,
			Message: "name is required",
		})
	}

	if normalized := NormalizePostalCode(d.PostalCode); len(normalized) != 7 {
		failures = append(failures, Failure{
			Field:   "postalCode",
			Code:    InvalidPostalCode,
			Message: "postal code must be exactly 7 digits (e.g. 6008001)",
		})
	}

	if strings.TrimSpace(d.Address) == "" {
		failures = append(failures, Failure{
			Field:   "address",
			Code:    RequiredFieldMissing,
			Message: "address is required",
		})
	}

	if d.Email != "" && !strings.Contains(d.Email, "@") {
		failures = append(failures, Failure{
			Field:   "email",
			Code:    InvalidEmailFormat,
			Message: "email must contain @",
		})
	}

	if d.Total(c).IsZero() {
		failures = append(failures, Failure{
			Field:   "items",
			Code:    EmptyOrder,
			Message: "at least one item quantity is required",
		})
	}

	return failures
}
