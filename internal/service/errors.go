package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("invalid authentication credentials")
	ErrSessionNotFound  = errors.New("session not found")
	ErrRunNotFound      = errors.New("run not found")
	ErrApprovalNotFound = errors.New("approval not found")
	ErrApprovalDecided  = errors.New("approval already decided")
	ErrInvalidDecision  = errors.New("invalid decision")
	ErrInvalidInput     = errors.New("invalid input")
)

// RateLimitError is returned when a user exceeded a request quota.
type RateLimitError struct {
	Limit  int
	Window string // "minute" or "day"
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded: %d requests per %s", e.Limit, e.Window)
}
