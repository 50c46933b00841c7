package service

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Business errors returned by the service layer. Callers match with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidStake        = fmt.Errorf("%w: invalid stake", ErrValidation)
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStakeLimitExceeded  = errors.New("stake exceeds event stake limit")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyFinished     = errors.New("event already finished")
	ErrNoStakes            = errors.New("event has no stakes")
	ErrStore               = errors.New("store operation failed")
	ErrEventClosed         = errors.New("event is closed for participation")
	ErrPlayerLimitReached  = errors.New("event player limit reached")
)

// storeError logs the underlying persistence failure and returns ErrStore.
// The cause stays in the log and is not exposed to callers.
func storeError(op string, err error, fields log.Fields) error {
	entry := log.WithError(err).WithField("operation", op)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Error("Store operation failed")
	return fmt.Errorf("%s: %w", op, ErrStore)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}
