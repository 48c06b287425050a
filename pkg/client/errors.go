package client

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of Admin API failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents HTTP 429 and THROTTLED GraphQL errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassGraphQL represents top-level GraphQL errors and undecodable payloads.
	ErrorClassGraphQL ErrorClass = "graphql"
)

// throttledCode is the extensions.code of a GraphQL error caused by the cost bucket.
const throttledCode = "THROTTLED"

// APIError represents a failed Admin API call with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error

	// RetryAfter is the server-requested delay, if any.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("admin API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("admin API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// GraphQLError is one entry of the top-level "errors" array of a response.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, or "" when absent.
func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// GraphQLErrors is the list of top-level errors returned with a response.
type GraphQLErrors []GraphQLError

// Error implements the error interface.
func (errs GraphQLErrors) Error() string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if code := e.Code(); code != "" {
			msg = fmt.Sprintf("%s (%s)", msg, code)
		}
		messages = append(messages, msg)
	}
	return strings.Join(messages, "; ")
}

// Throttled reports whether any of the errors is a cost throttle.
func (errs GraphQLErrors) Throttled() bool {
	for _, e := range errs {
		if e.Code() == throttledCode {
			return true
		}
	}
	return false
}

// ClassOf returns the ErrorClass carried by err, or "" when err is not an APIError.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors (bad token, missing scope) will not succeed on retry
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	case ErrorClassGraphQL:
		// Query or schema problems are deterministic
		return false
	default:
		return false
	}
}
