package models

import (
	"fmt"
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassRead: catalog lookups and order reads. Terminals poll these on every scan.
	ClassRead EndpointClass = "read"
	// ClassWrite: order creation, status changes and catalog mutations.
	ClassWrite EndpointClass = "write"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	return c == ClassRead || c == ClassWrite
}

// Limit is a request budget over a sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the API response when a client is over its budget.
type ExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// SanitizeKeySegment escapes the key delimiter so a client-controlled value
// (an IPv6 address or a forged X-Forwarded-For) cannot address another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// Key builds the bucket key for a client IP and endpoint class.
func Key(ip string, class EndpointClass) string {
	return fmt.Sprintf("ip:%s:%s", SanitizeKeySegment(ip), class)
}
