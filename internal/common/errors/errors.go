// Package errors provides the error taxonomy shared by the sales core and the Zeebe workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Sales core taxonomy
const (
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotConnected  ErrorCode = "NOT_CONNECTED"
	ErrCodeDispatch      ErrorCode = "DISPATCH_FAILED"
	ErrCodeNotifier      ErrorCode = "NOTIFIER_FAILED"
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
)

// Infrastructure
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeResourceNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT"
	ErrCodeBusinessRule             ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeLLMTimeout               ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMGenerationFailed      ErrorCode = "LLM_GENERATION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
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
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewValidationError reports bad input such as a malformed price.
func NewValidationError(field, details string) *StandardError {
	return newError(ErrCodeValidation, "Invalid input", details, false, nil).WithMetadata("field", field)
}

// NewNotConnectedError reports that the messaging transport has no live session.
func NewNotConnectedError(details string) *StandardError {
	return newError(ErrCodeNotConnected, "WhatsApp transport not connected", details, true, nil)
}

// NewDispatchError reports a failed send to one recipient.
func NewDispatchError(target string, err error) *StandardError {
	return newError(ErrCodeDispatch, "Message dispatch failed", err.Error(), true, err).
		WithMetadata("target", target)
}

// NewNotifierError reports an unreachable alert channel.
func NewNotifierError(channel string, err error) *StandardError {
	return newError(ErrCodeNotifier, "Notification channel unreachable", err.Error(), true, err).
		WithMetadata("channel", channel)
}

// NewConfigurationError reports a missing or unusable setting.
func NewConfigurationError(key, details string) *StandardError {
	return newError(ErrCodeConfiguration, "Invalid configuration", details, false, nil).
		WithMetadata("key", key)
}

func NewDatabaseConnectionError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection failed", err.Error(), true, err)
}

func NewQueryExecutionError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Query execution failed", err.Error(), true, err).
		WithMetadata("query", query)
}

func NewDatabaseInsertError(table string, err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert failed", err.Error(), true, err).
		WithMetadata("table", table)
}

func NewSearchQueryError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed", err.Error(), true, err).
		WithMetadata("index", index)
}

func NewResourceNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("%s not found", resource), id, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service %s failed", service), err.Error(), true, err)
}

func NewTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Operation %s timed out", operation), err.Error(), true, err)
}

func NewBusinessRuleError(rule, details string) *StandardError {
	return newError(ErrCodeBusinessRule, rule, details, false, nil)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "AI generation timed out", err.Error(), true, err)
}

func NewLLMGenerationError(err error) *StandardError {
	return newError(ErrCodeLLMGenerationFailed, "AI generation failed", err.Error(), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the BPMN error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:               "VALIDATION_ERROR",
	ErrCodeNotConnected:             "WHATSAPP_NOT_CONNECTED",
	ErrCodeDispatch:                 "DISPATCH_FAILED",
	ErrCodeNotifier:                 "NOTIFIER_FAILED",
	ErrCodeConfiguration:            "CONFIGURATION_ERROR",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeResourceNotFound:         "RESOURCE_NOT_FOUND",
	ErrCodeExternalService:          "EXTERNAL_SERVICE_ERROR",
	ErrCodeTimeout:                  "TIMEOUT",
	ErrCodeBusinessRule:             "BUSINESS_RULE_VIOLATION",
	ErrCodeLLMTimeout:               "LLM_TIMEOUT",
	ErrCodeLLMGenerationFailed:      "LLM_GENERATION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalService,
		ErrCodeNotConnected,
		ErrCodeLLMGenerationFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeTimeout,
		ErrCodeDispatch,
		ErrCodeNotifier:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DISPATCH") || strings.Contains(codeStr, "CONNECTED"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "NOTIFIER"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "CONFIGURATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
