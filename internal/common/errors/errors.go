// Package errors provides standardized error handling for the bot service.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Generation pipeline
	ErrCodeGenerationFailed       ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout      ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeGenerationRateLimited  ErrorCode = "GENERATION_RATE_LIMITED"
	ErrCodeGenerationUnauthorized ErrorCode = "GENERATION_UNAUTHORIZED"
	ErrCodeGenerationConnection   ErrorCode = "GENERATION_CONNECTION_FAILED"
	ErrCodeQueueSaturated         ErrorCode = "QUEUE_SATURATED"
	ErrCodePageQuotaExceeded      ErrorCode = "PAGE_QUOTA_EXCEEDED"

	// AI service
	ErrCodeAIRequestFailed      ErrorCode = "AI_REQUEST_FAILED"
	ErrCodeAITimeout            ErrorCode = "AI_TIMEOUT"
	ErrCodeIntentParsingFailed  ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeFactExtractionFailed ErrorCode = "FACT_EXTRACTION_FAILED"
	ErrCodePromptSynthesisFailed ErrorCode = "PROMPT_SYNTHESIS_FAILED"

	// Store
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeRecordNotFound           ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeReadOnlyTableViolation   ErrorCode = "READ_ONLY_TABLE_VIOLATION"

	// Subscription / payments
	ErrCodePlanNotFound        ErrorCode = "PLAN_NOT_FOUND"
	ErrCodePaymentLinkFailed   ErrorCode = "PAYMENT_LINK_FAILED"
	ErrCodePaymentNotConfirmed ErrorCode = "PAYMENT_NOT_CONFIRMED"

	// Notifications
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

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

// ==========================
// 2. Error Constructors
// ==========================

// NewGenerationFailedError creates a retryable generation error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Web page generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a retryable per-attempt timeout error.
func NewGenerationTimeoutError(attempt int) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Generation attempt timed out",
		Details:   fmt.Sprintf("attempt: %d", attempt),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationRateLimitedError creates a retryable rate-limit error.
func NewGenerationRateLimitedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationRateLimited,
		Message:   "Generation API rate limit reached",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationUnauthorizedError creates a non-retryable credential error.
func NewGenerationUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationUnauthorized,
		Message:   "Generation API rejected credentials",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueSaturatedError creates a non-retryable admission error after the
// wait ceiling is exhausted.
func NewQueueSaturatedError(userID string, waited time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueSaturated,
		Message:   "Generation queue saturated",
		Details:   fmt.Sprintf("userId: %s, waited: %s", userID, waited),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPageQuotaExceededError creates a non-retryable quota error.
func NewPageQuotaExceededError(userID string, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodePageQuotaExceeded,
		Message:   "User has reached the page limit of the current plan",
		Details:   fmt.Sprintf("userId: %s, limit: %d", userID, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAIRequestFailedError creates a retryable AI transport error.
func NewAIRequestFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAIRequestFailed,
		Message:   "AI service request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAITimeoutError creates a retryable AI timeout error.
func NewAITimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAITimeout,
		Message:   "AI service did not respond in time",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentParsingFailedError creates a retryable classification error.
// Callers degrade to NO_DETECTED instead of surfacing it to the user.
func NewIntentParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Message:   "Intent classification failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFactExtractionFailedError creates a retryable extraction error.
// Callers degrade to empty facts.
func NewFactExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFactExtractionFailed,
		Message:   "Structured fact extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPromptSynthesisFailedError creates a retryable synthesis error.
// Callers degrade to the fallback prompt template.
func NewPromptSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePromptSynthesisFailed,
		Message:   "Generation prompt synthesis failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable database error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query failed",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable lookup error.
func NewRecordNotFoundError(entity, key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReadOnlyTableViolationError creates a non-retryable guard error.
func NewReadOnlyTableViolationError(table, operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeReadOnlyTableViolation,
		Message:   fmt.Sprintf("Write operation '%s' blocked on read-only table '%s'", operation, table),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanNotFoundError creates a non-retryable plan lookup error.
func NewPlanNotFoundError(plan string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanNotFound,
		Message:   "Requested plan does not exist",
		Details:   fmt.Sprintf("plan: %s", plan),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentLinkFailedError creates a retryable payment-service error.
func NewPaymentLinkFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentLinkFailed,
		Message:   "Payment service did not return a checkout link",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentNotConfirmedError signals that the plan assignment has not landed yet.
func NewPaymentNotConfirmedError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentNotConfirmed,
		Message:   "Payment not confirmed yet",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Failed to send notification",
		Details:   fmt.Sprintf("type: %s, error: %v", notificationType, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retryability Helpers
// ==========================

// nonRetryableSignatures are upstream error texts that make further retries
// pointless. Matched case-sensitively against the error string, the same way
// the generation API reports them.
var nonRetryableSignatures = []string{
	"Invalid API key",
	"Unauthorized",
	"Forbidden",
	"Bad Request",
}

// IsNonRetryableAPIError reports whether the error text carries a credential
// or request-shape failure. Timeouts and aborted attempts stay retryable.
func IsNonRetryableAPIError(err error) bool {
	if err == nil {
		return false
	}
	text := err.Error()
	for _, sig := range nonRetryableSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

// IsRetryableErrorCode returns true when the code marks a transient failure.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeGenerationUnauthorized,
		ErrCodeQueueSaturated,
		ErrCodePageQuotaExceeded,
		ErrCodeRecordNotFound,
		ErrCodeReadOnlyTableViolation,
		ErrCodePlanNotFound:
		return false
	}
	return true
}

// GetRetryCount returns how many retries a failure with the given code earns.
func GetRetryCount(code ErrorCode) int {
	if !IsRetryableErrorCode(code) {
		return 0
	}
	switch code {
	case ErrCodeGenerationFailed, ErrCodeGenerationTimeout, ErrCodeGenerationConnection:
		return 3
	case ErrCodeGenerationRateLimited:
		return 1
	default:
		return 2
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeGenerationFailed, ErrCodeGenerationTimeout, ErrCodeGenerationRateLimited,
		ErrCodeGenerationUnauthorized, ErrCodeGenerationConnection,
		ErrCodeQueueSaturated, ErrCodePageQuotaExceeded:
		return "generation"
	case ErrCodeAIRequestFailed, ErrCodeAITimeout, ErrCodeIntentParsingFailed,
		ErrCodeFactExtractionFailed, ErrCodePromptSynthesisFailed:
		return "ai"
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed, ErrCodeRecordNotFound, ErrCodeReadOnlyTableViolation:
		return "database"
	case ErrCodePlanNotFound, ErrCodePaymentLinkFailed, ErrCodePaymentNotConfirmed:
		return "payments"
	case ErrCodeNotificationSendFailed:
		return "notifications"
	default:
		return "internal"
	}
}
