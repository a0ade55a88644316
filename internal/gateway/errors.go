package gateway

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the failure class of a gateway operation.
type ErrorCode string

const (
	CodeConfig              ErrorCode = "CONFIG"
	CodeUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	CodeInvalidState        ErrorCode = "INVALID_STATE"
	CodeWebhookVerification ErrorCode = "WEBHOOK_VERIFICATION"
	CodeGateway             ErrorCode = "GATEWAY"
	CodeTimeout             ErrorCode = "TIMEOUT"
)

// Error carries the failure class plus the provider and payment the operation
// was acting on. Provider rejections additionally keep the remote status code
// and message so callers can decide their own retry policy.
type Error struct {
	Code           ErrorCode
	Provider       string
	PaymentID      string
	Message        string
	ProviderStatus int    // HTTP status returned by the provider, when CodeGateway
	ProviderCode   string // provider-specific error code, when available
	Err            error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider != "" && e.PaymentID != "" {
		return fmt.Sprintf("%s: payment %s: %s", e.Provider, e.PaymentID, msg)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
	return msg
}

// Unwrap allows errors.Is/As to inspect the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsError extracts a gateway *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HasCode reports whether err is a gateway error with the given code.
func HasCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

func IsInvalidState(err error) bool { return HasCode(err, CodeInvalidState) }
func IsTimeout(err error) bool      { return HasCode(err, CodeTimeout) }

func configErr(provider, message string) *Error {
	return &Error{Code: CodeConfig, Provider: provider, Message: message}
}

func invalidStateErr(provider, paymentID, message string) *Error {
	return &Error{Code: CodeInvalidState, Provider: provider, PaymentID: paymentID, Message: message}
}

func verificationErr(provider, message string, cause error) *Error {
	return &Error{Code: CodeWebhookVerification, Provider: provider, Message: message, Err: cause}
}

func gatewayErr(provider, paymentID string, status int, providerCode, message string) *Error {
	return &Error{
		Code:           CodeGateway,
		Provider:       provider,
		PaymentID:      paymentID,
		ProviderStatus: status,
		ProviderCode:   providerCode,
		Message:        message,
	}
}

func timeoutErr(provider, paymentID string, cause error) *Error {
	return &Error{
		Code:      CodeTimeout,
		Provider:  provider,
		PaymentID: paymentID,
		Message:   "provider call exceeded deadline",
		Err:       cause,
	}
}

func transportErr(provider, paymentID string, cause error) *Error {
	return &Error{
		Code:      CodeGateway,
		Provider:  provider,
		PaymentID: paymentID,
		Message:   "provider call failed",
		Err:       cause,
	}
}
