package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend is returned when neither the live nor the simulation adapter connects.
	ErrNoBackend = errors.New("no broker backend could connect")
	// ErrLoopAlreadyRan is returned by a second Run on the same dispatch loop.
	ErrLoopAlreadyRan = errors.New("dispatch loop already ran")
)

// ConfigError reports bad strategy configuration. It is fatal at startup.
type ConfigError struct {
	Strategy string
	Field    string
	Reason   string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := "config"
	if e.Strategy != "" {
		msg = fmt.Sprintf("strategy %s", e.Strategy)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: option %s", msg, e.Field)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectError reports a broker connect failure.
type ConnectError struct {
	Adapter string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Adapter, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// EvaluationError reports a strategy fault during one cycle.
type EvaluationError struct {
	Strategy string
	Cycle    int
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s (cycle %d): %v", e.Strategy, e.Cycle, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// SubmitFailure is a non-success answer from a broker backend.
type SubmitFailure struct {
	Code    int
	Message string
}

func (e *SubmitFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("retcode %d", e.Code)
	}
	return fmt.Sprintf("retcode %d: %s", e.Code, e.Message)
}

// RejectReason is why the risk guard refused an order. It is not an error.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectSymbolNotAllowed RejectReason = "symbol_not_allowed"
	RejectInvalidVolume    RejectReason = "invalid_volume"
)
