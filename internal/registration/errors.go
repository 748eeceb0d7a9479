package registration

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a registration attempt failed.
type Kind string

const (
	KindConfigurationMissing Kind = "configuration_missing"
	KindRemoteRejected       Kind = "remote_rejected"
	KindTransportFailure     Kind = "transport_failure"
)

func (k Kind) String() string { return string(k) }

// Error describes a failed registration attempt.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "registration error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf returns the failure kind carried by err, or "" when err is not a
// registration error.
func KindOf(err error) Kind {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Kind
	}
	return ""
}
