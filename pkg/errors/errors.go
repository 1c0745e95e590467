// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the Glow data logger.
//
// This package defines custom error types that provide better error handling,
// inspection, and debugging capabilities compared to plain string errors.
//
// # Benefits of Structured Errors
//
//   - Type-safe error inspection with errors.As() and errors.Is()
//   - Context-rich error messages with operation and underlying error details
//   - Consistent error formatting across the application
//   - Better error wrapping and unwrapping support
//   - Enhanced logging with structured error fields
//
// # Example Usage
//
//	err := errors.NewAuthError("login", fmt.Errorf("empty response"))
//	if errors.IsAuthError(err) {
//	    log.Printf("Authentication failed: %v", err)
//	}
//
//	var authErr *errors.AuthError
//	if errors.As(err, &authErr) {
//	    log.Printf("Failed operation: %s", authErr.Op)
//	}
package errors

import (
	"errors"
	"fmt"
)

// AuthError represents a failed authentication attempt against the metering
// service. It is the only error promoted out of an absent transport result.
type AuthError struct {
	Op  string // Operation being performed (e.g., "login", "token refresh")
	Err error  // Underlying error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("auth %s: request rejected", e.Op)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new authentication error.
func NewAuthError(op string, err error) *AuthError {
	return &AuthError{Op: op, Err: err}
}

// IsAuthError checks if an error is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ResourceError represents an error while looking up or fetching data for a
// metered resource.
type ResourceError struct {
	Op         string // Operation being performed (e.g., "list", "readings", "tariff")
	Classifier string // Resource classifier involved (if applicable)
	ResourceID string // Resource ID involved (if applicable)
	Err        error  // Underlying error
}

func (e *ResourceError) Error() string {
	switch {
	case e.ResourceID != "":
		return fmt.Sprintf("resource %s (id=%s): %v", e.Op, e.ResourceID, e.Err)
	case e.Classifier != "":
		return fmt.Sprintf("resource %s (classifier=%s): %v", e.Op, e.Classifier, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("resource %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("resource %s failed", e.Op)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new resource error.
func NewResourceError(op, classifier, resourceID string, err error) *ResourceError {
	return &ResourceError{Op: op, Classifier: classifier, ResourceID: resourceID, Err: err}
}

// IsResourceError checks if an error is a ResourceError.
func IsResourceError(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Op         string // Operation being performed (e.g., "write", "query")
	ResourceID string // Resource ID involved in the operation (if applicable)
	Err        error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("storage %s (resource=%s): %v", e.Op, e.ResourceID, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s failed", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error.
func NewStorageError(op string, resourceID string, err error) *StorageError {
	return &StorageError{Op: op, ResourceID: resourceID, Err: err}
}

// IsStorageError checks if an error is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional, may be redacted for sensitive fields)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// NotificationError represents an error sending notifications.
type NotificationError struct {
	Type string // Notification type (e.g., "slack")
	Err  error  // Underlying error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("notification %s failed", e.Type)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// NewNotificationError creates a new notification error.
func NewNotificationError(notifType string, err error) *NotificationError {
	return &NotificationError{Type: notifType, Err: err}
}

// IsNotificationError checks if an error is a NotificationError.
func IsNotificationError(err error) bool {
	var ne *NotificationError
	return errors.As(err, &ne)
}

// Sentinel errors for common conditions
var (
	// ErrEmptyResponse indicates the service returned no usable body
	ErrEmptyResponse = errors.New("empty response")

	// ErrResourceNotFound indicates a resource classifier was not found
	// in the account's resource listing
	ErrResourceNotFound = errors.New("resource not found")

	// ErrMalformedResponse indicates a response body was missing expected keys
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNotAuthenticated indicates no session has been established yet
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrCacheFull indicates the local write-behind cache is full
	ErrCacheFull = errors.New("cache full")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
