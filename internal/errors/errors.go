// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every layer. Typed errors below unwrap to one of these.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrGeneration          = errors.New("generation failed")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ErrCampaignNotFound is returned when a campaign id does not exist
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

func (e *ErrCampaignNotFound) Unwrap() error { return ErrNotFound }

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrMessageNotFound is returned when a message id does not exist
type ErrMessageNotFound struct {
	MessageID string
}

func (e *ErrMessageNotFound) Error() string {
	return fmt.Sprintf("message with ID %s not found", e.MessageID)
}

func (e *ErrMessageNotFound) Unwrap() error { return ErrNotFound }

func NewMessageNotFound(id string) error {
	return &ErrMessageNotFound{MessageID: id}
}

// IllegalTransitionError reports an action that the lifecycle table does not allow
// from the message's current status.
type IllegalTransitionError struct {
	From   string
	Action string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a message in status %s", e.Action, e.From)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

func NewIllegalTransition(from, action string) error {
	return &IllegalTransitionError{From: from, Action: action}
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
