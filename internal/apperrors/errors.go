// Package apperrors defines the error taxonomy shared by services and
// handlers. Every error carries a stable Kind that clients can branch on.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-visible error code.
type Kind string

const (
	KindInvalidLineItem     Kind = "INVALID_LINE_ITEM"
	KindEmptyCart           Kind = "EMPTY_CART"
	KindInvalidCoupon       Kind = "INVALID_COUPON"
	KindCouponNotFound      Kind = "COUPON_NOT_FOUND"
	KindCouponExpired       Kind = "COUPON_EXPIRED"
	KindPaymentNotConfirmed Kind = "PAYMENT_NOT_CONFIRMED"
	KindDuplicateSession    Kind = "DUPLICATE_SESSION"
	KindNotFound            Kind = "NOT_FOUND"
	KindValidation          Kind = "VALIDATION"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindUnavailable         Kind = "UNAVAILABLE"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindInternal            Kind = "INTERNAL"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same Kind, so the
// sentinels below work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound            = New(KindNotFound, "not found")
	ErrEmptyCart           = New(KindEmptyCart, "cart is empty, nothing to checkout")
	ErrInvalidCoupon       = New(KindInvalidCoupon, "invalid coupon")
	ErrCouponNotFound      = New(KindCouponNotFound, "coupon not found")
	ErrCouponExpired       = New(KindCouponExpired, "coupon expired")
	ErrPaymentNotConfirmed = New(KindPaymentNotConfirmed, "payment not confirmed")
	ErrDuplicateSession    = New(KindDuplicateSession, "order for this session already exists")
	ErrUnauthorized        = New(KindUnauthorized, "unauthorized")
	ErrForbidden           = New(KindForbidden, "forbidden - admin access only")
	ErrUnavailable         = New(KindUnavailable, "upstream unavailable")
)

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewValidationError reports a bad request field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Details: map[string]string{"field": field},
	}
}

// NewInvalidLineItem reports a line item rejected against the catalog.
func NewInvalidLineItem(productID, reason string) *Error {
	return &Error{
		Kind:    KindInvalidLineItem,
		Message: "invalid line item: " + reason,
		Details: map[string]string{"product_id": productID},
	}
}

// NotFound reports a missing entity of the named type.
func NotFound(entity string) *Error {
	return New(KindNotFound, entity+" not found")
}

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
