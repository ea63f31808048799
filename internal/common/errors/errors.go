// Package errors provides the error codes and structured errors shared by the assistant pipeline and its workers.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode is a machine-readable failure identifier.
type ErrorCode string

// Validation codes appear in verdicts shown to users, so they stay stable and kebab-cased.
const (
	CodeSubscriptionInactive        ErrorCode = "subscription-inactive"
	CodeQuotaExceeded               ErrorCode = "quota-exceeded"
	CodeQuotaNearLimit              ErrorCode = "quota-near-limit"
	CodeCounterpartyMissing         ErrorCode = "counterparty-missing"
	CodeAmountInvalid               ErrorCode = "amount-invalid"
	CodeFiscalRegistrationMissing   ErrorCode = "fiscal-registration-missing"
	CodeJurisdictionUnsupported     ErrorCode = "jurisdiction-unsupported"
	CodeCertificateMissing          ErrorCode = "certificate-missing"
	CodeCertificateExpired          ErrorCode = "certificate-expired"
	CodeCertificateExpiring         ErrorCode = "certificate-expiring"
	CodeConnectionFailed            ErrorCode = "connection-failed"
	CodeConnectionMissing           ErrorCode = "connection-missing"
	CodeTaxRegimeLimitExceeded      ErrorCode = "tax-regime-limit-exceeded"
	CodeTaxRegimeLimitNear          ErrorCode = "tax-regime-limit-near"
	CodeInvoiceNotFound             ErrorCode = "invoice-not-found"
	CodeInvoiceNotCancellable       ErrorCode = "invoice-not-cancellable"
	CodeJustificationTooShort       ErrorCode = "justification-too-short"
	CodeCancellationUnsupported     ErrorCode = "cancellation-unsupported"
	CodeCancellationDeadlineExpired ErrorCode = "cancellation-deadline-expired"
	CodeCancellationDeadlineNear    ErrorCode = "cancellation-deadline-near"
	CodeStatusUnavailable           ErrorCode = "status-unavailable"
)

// Operational codes
const (
	ErrCodeModelTimeout         ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelUnavailable     ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeModelMalformed       ErrorCode = "MODEL_MALFORMED_REPLY"
	ErrCodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"
	ErrCodeUnsupportedAction    ErrorCode = "UNSUPPORTED_ACTION"
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeExecutionFailed      ErrorCode = "EXECUTION_FAILED"
	ErrCodeSinkUnavailable      ErrorCode = "SINK_UNAVAILABLE"
	ErrCodeDatabaseFailed       ErrorCode = "DATABASE_FAILED"
	ErrCodeSearchFailed         ErrorCode = "SEARCH_FAILED"
	ErrCodeExternalService      ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// ==========================
// 2. Standard Error Type
// ==========================

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with one metadata entry added.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 4. Error Constructors
// ==========================

func NewModelTimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeModelTimeout, "Language model did not answer in time",
		fmt.Sprintf("timeout after %s", timeout), true)
}

// NewConfirmationRequiredError is returned when a plan reaches execution without a confirmation.
func NewConfirmationRequiredError(planID string) *StandardError {
	return newError(ErrCodeConfirmationRequired, "Action requires explicit user confirmation",
		"plan "+planID, false).WithMetadata("planId", planID)
}

func NewUnsupportedActionError(action string) *StandardError {
	return newError(ErrCodeUnsupportedAction, "Action cannot be executed", action, false)
}

// NewValidationFailedError carries the codes of the blocking verdict items.
func NewValidationFailedError(codes []string) *StandardError {
	return newError(ErrCodeValidationFailed, "Action did not pass validation",
		fmt.Sprintf("%d blocking item(s)", len(codes)), false).WithMetadata("codes", codes)
}

func NewExecutionFailedError(userMessage string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeExecutionFailed, userMessage, details, false)
}

func NewSinkUnavailableError(err error) *StandardError {
	return newError(ErrCodeSinkUnavailable, "Fiscal platform is unavailable", err.Error(), true)
}

func NewDatabaseError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseFailed, "Database operation failed", operation+": "+err.Error(), true)
}

func NewSearchError(err error) *StandardError {
	return newError(ErrCodeSearchFailed, "Search index query failed", err.Error(), true)
}

// NewExternalServiceError wraps failures of infrastructure the pipeline talks to (Zeebe, AWS).
func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, service+" request failed", err.Error(), true).
		WithMetadata("service", service)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// ==========================
// 5. Retry Policy
// ==========================

var retryCounts = map[ErrorCode]int{
	ErrCodeModelTimeout:     1,
	ErrCodeModelUnavailable: 2,
	ErrCodeSinkUnavailable:  3,
	ErrCodeDatabaseFailed:   3,
	ErrCodeSearchFailed:     2,
	ErrCodeExternalService:  3,
}

// GetRetryCount returns how many job retries a code deserves; zero means throw a BPMN error.
func GetRetryCount(code ErrorCode) int {
	return retryCounts[code]
}

// IsRetryableErrorCode reports whether the code has a retry budget.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for dashboards.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeModelTimeout, ErrCodeModelUnavailable, ErrCodeModelMalformed:
		return "MODEL"
	case ErrCodeConfirmationRequired, ErrCodeValidationFailed, ErrCodeUnsupportedAction, ErrCodeInvalidInput:
		return "BUSINESS_RULE"
	case ErrCodeExecutionFailed, ErrCodeSinkUnavailable:
		return "EXECUTION"
	case ErrCodeDatabaseFailed, ErrCodeSearchFailed, ErrCodeExternalService:
		return "INFRASTRUCTURE"
	}
	if code != "" && code[0] >= 'a' && code[0] <= 'z' {
		return "VALIDATION"
	}
	return "UNKNOWN"
}

// ConvertToBPMNError maps a StandardError onto the Zeebe error shape.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	vars := map[string]interface{}{
		"errorCategory": GetErrorCategory(stdErr.Code),
		"timestamp":     stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}
	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        GetRetryCount(stdErr.Code),
		ErrorVariables: vars,
	}
}
