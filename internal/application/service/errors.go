package service

import (
	"errors"

	"github.com/payhub/approval-engine/internal/application/port"
)

// Engine error taxonomy. Every operation either fully commits its state
// transition and audit entry together, or mutates nothing and returns one of
// these typed failures.
var (
	// ErrInstanceNotFound is returned when no workflow instance exists for the id
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceNotActive is returned when a decision or cancellation targets
	// an instance that is not in_progress (including losing a decision race)
	ErrInstanceNotActive = errors.New("workflow instance is not in progress")

	// ErrNotAuthorized is returned when the acting user holds no assignment
	// for the instance's current stage
	ErrNotAuthorized = errors.New("user is not authorized to decide the current stage")

	// ErrTemplateNotFound is returned when no template exists or no active
	// template matches the payment's dimensions
	ErrTemplateNotFound = errors.New("workflow template not found")

	// ErrTemplateHasNoStages is returned when starting a workflow from a
	// template with an empty stage list
	ErrTemplateHasNoStages = errors.New("workflow template has no stages")

	// ErrPaymentNotFound is returned when the payment to start a workflow for
	// does not exist
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrPaymentHasActiveInstance enforces the at-most-one-active-instance
	// invariant on start
	ErrPaymentHasActiveInstance = errors.New("payment already has an active workflow instance")

	// ErrInvalidInput is returned for malformed requests before any storage
	// access happens
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistenceUnavailable is returned when the storage collaborator
	// failed before any state was mutated; callers may retry. Repositories
	// produce it by classifying timeouts and lost connections, so the same
	// sentinel flows from the driver to the HTTP status mapping.
	ErrPersistenceUnavailable = port.ErrUnavailable
)
