package engine

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/repo"
)

// ValidationError reports missing or malformed input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidTransitionError reports an approve or reject on a resolved reminder.
type InvalidTransitionError struct {
	ID   string
	From domain.Status
	To   domain.Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid reminder status transition %s -> %s (%s)", e.From, e.To, e.ID)
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == repo.ErrNotFound }

// StoreError wraps an I/O failure from the store. It is not retried here.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

// storeErr maps repo errors for kind/id onto the engine taxonomy.
func storeErr(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return StoreError{Op: op, Err: err}
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// fromValidator converts the first struct validation failure.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "email":
		return invalid(fe.Field(), "%q is not a valid email", fe.Value())
	case "oneof":
		return invalid(fe.Field(), "must be one of %s", fe.Param())
	case "max":
		return invalid(fe.Field(), "must be at most %s characters", fe.Param())
	default:
		return invalid(fe.Field(), "failed %s check", fe.Tag())
	}
}
