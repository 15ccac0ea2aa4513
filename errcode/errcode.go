package errcode

import (
	"errors"

	"uvsense-go/drivers/veml6075"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"
	InvalidPeriod     Code = "invalid_period"
	NoAdaptor         Code = "no_adaptor"
	NotReady          Code = "not_ready"
	Disabled          Code = "disabled"

	UnknownBus       Code = "unknown_bus"
	BusError         Code = "bus_error"
	UnexpectedDevice Code = "unexpected_device"
	Timeout          Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return MapDriverErr(err)
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	var be *veml6075.BusError
	switch {
	case err == nil:
		return OK
	case errors.As(err, &be):
		return BusError
	case errors.Is(err, veml6075.ErrUnexpectedID):
		return UnexpectedDevice
	case errors.Is(err, veml6075.ErrInvalidIntegrationTime),
		errors.Is(err, veml6075.ErrInvalidMode),
		errors.Is(err, veml6075.ErrInvalidDynamicSetting):
		return InvalidParams
	}
	return Error
}
