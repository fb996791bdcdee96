// Package errs classifies the failures the portal core can surface to the UI.
//
// Three families exist: AuthError for identity operations, StoreError for the
// document store, and ConfigError for startup configuration. Each carries a
// stable code so callers can branch on it and a message that can be shown to a
// user as-is.
package errs

import (
	"errors"
	"fmt"
)

// Code is a stable, machine readable error code.
type Code string

const (
	// auth
	CodeBadCredential    Code = "bad-credential"
	CodeDuplicateAccount Code = "duplicate-account"
	CodeWeakPassword     Code = "weak-password"
	CodeInvalidEmail     Code = "invalid-email"
	CodeInvalidToken     Code = "invalid-token"
	CodeNetwork          Code = "network"

	// store
	CodePermissionDenied Code = "permission-denied"
	CodeNotFound         Code = "not-found"
	CodeInvalidArgument  Code = "invalid-argument"

	// config
	CodeConfig Code = "config"

	CodeUnknown Code = "unknown"
)

// AuthError is returned by identity operations (sign-up, sign-in, sign-out).
type AuthError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth/%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth/%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// StoreError is returned by document reads, writes and live subscriptions.
type StoreError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store/%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("store/%s: %s", e.Code, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// ConfigError reports a missing or placeholder configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func Auth(code Code, msg string, cause error) *AuthError {
	return &AuthError{Code: code, Message: msg, Cause: cause}
}

func Store(code Code, msg string, cause error) *StoreError {
	return &StoreError{Code: code, Message: msg, Cause: cause}
}

func Config(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// CodeOf returns the classification code of err, or CodeUnknown when err is not
// one of the portal error types. A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return CodeConfig
	}
	return CodeUnknown
}

// Message returns text suitable for showing to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Message
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return "service unavailable: backend is not configured"
	}
	return "something went wrong, please try again"
}
