package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/agri-market-backend/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid state")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("concurrent update, refetch and retry")
	ErrAlreadyOrdered = errors.New("order already exists for negotiation")

	ErrNotActive   = fmt.Errorf("%w: negotiation is not active", ErrInvalidState)
	ErrNotYourTurn = fmt.Errorf("%w: waiting for the other party to respond", ErrInvalidState)
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return validationError(field + " must be a positive number")
	}
	return nil
}

func validateText(field, s string, required bool) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", validationError(field + " is required")
	}
	if utf8.RuneCountInString(s) > model.MaxMessageLength {
		return "", validationError(fmt.Sprintf("%s must be at most %d characters", field, model.MaxMessageLength))
	}
	return s, nil
}
