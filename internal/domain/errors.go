package domain

import (
	"errors"
	"fmt"
	"strings"
)

type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource == "":
		return "not found"
	case e.ID != "":
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	default:
		return fmt.Sprintf("%s not found", e.Resource)
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError reports a resource already claimed by someone else.
// SeatIDs names the unavailable seats when the conflict comes from a hold.
type ConflictError struct {
	Resource string
	Msg      string
	SeatIDs  []string
	Err      error
}

func (e ConflictError) Error() string {
	msg := e.Msg
	if msg == "" && len(e.SeatIDs) > 0 {
		msg = "unavailable: " + strings.Join(e.SeatIDs, ",")
	}
	switch {
	case msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, msg)
	case msg != "":
		return msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// ExpiredError is returned when a hold TTL passed before the operation.
type ExpiredError struct {
	Resource string
	ID       string
}

func (e ExpiredError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s expired", e.resource(), e.ID)
	}
	return e.resource() + " expired"
}

func (e ExpiredError) resource() string {
	if e.Resource == "" {
		return "hold"
	}
	return e.Resource
}

type InsufficientFundsError struct {
	AccountID string
	Balance   int64
	Required  int64
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: balance %d, required %d", e.AccountID, e.Balance, e.Required)
}

// NetworkUnavailableError wraps a transport failure seen while syncing.
type NetworkUnavailableError struct {
	Err error
}

func (e NetworkUnavailableError) Error() string {
	if e.Err == nil {
		return "network unavailable"
	}
	return fmt.Sprintf("network unavailable: %v", e.Err)
}

func (e NetworkUnavailableError) Unwrap() error { return e.Err }

type UnauthorizedError struct {
	Msg string
}

func (e UnauthorizedError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "unauthorized"
}

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "forbidden"
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsExpired(err error) bool {
	var target ExpiredError
	return errors.As(err, &target)
}

func IsInsufficientFunds(err error) bool {
	var target InsufficientFundsError
	return errors.As(err, &target)
}

func IsNetworkUnavailable(err error) bool {
	var target NetworkUnavailableError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target UnauthorizedError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

// ConflictSeats returns the seat ids carried by a hold conflict, if any.
func ConflictSeats(err error) []string {
	var target ConflictError
	if errors.As(err, &target) {
		return target.SeatIDs
	}
	return nil
}
