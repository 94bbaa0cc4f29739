// internal/pkg/apperr/apperr.go
package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeEmptyCart           Code = "EMPTY_CART"
	CodeOrderCreationFailed Code = "ORDER_CREATION_FAILED"
	CodeInvalidStatus       Code = "INVALID_STATUS"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Metadata describes how a code is surfaced over HTTP
type Metadata struct {
	HTTPStatus     int
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeInsufficientStock: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "insufficient stock",
		DetailsAllowed: true,
	},
	CodeEmptyCart: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "cart is empty",
		DetailsAllowed: false,
	},
	CodeOrderCreationFailed: {
		HTTPStatus:     http.StatusInternalServerError,
		PublicMessage:  "order could not be created",
		DetailsAllowed: true,
	},
	CodeInvalidStatus: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "status transition not allowed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:     http.StatusUnauthorized,
		PublicMessage:  "authentication required",
		DetailsAllowed: false,
	},
	CodeForbidden: {
		HTTPStatus:     http.StatusForbidden,
		PublicMessage:  "access denied",
		DetailsAllowed: false,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
}

// MetadataFor returns the metadata for code, falling back to CodeInternal
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a typed domain error
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// StockDetails is attached to INSUFFICIENT_STOCK errors
type StockDetails struct {
	ProductID uint `json:"product_id"`
	Requested int  `json:"requested"`
	Available int  `json:"available"`
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func NotFound(resource string) *Error {
	return Newf(CodeNotFound, "%s not found", resource)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

func Internal(err error, message string) *Error {
	return Wrap(CodeInternal, err, message)
}

func InsufficientStock(productID uint, requested, available int) *Error {
	return Newf(CodeInsufficientStock, "insufficient stock. Available: %d", available).
		WithDetails(StockDetails{ProductID: productID, Requested: requested, Available: available})
}

func EmptyCart() *Error {
	return New(CodeEmptyCart, "cannot create an order from an empty cart")
}

func OrderCreationFailed(err error, message string) *Error {
	return Wrap(CodeOrderCreationFailed, err, message)
}

func InvalidStatus(from, to string) *Error {
	return Newf(CodeInvalidStatus, "cannot change order status from %s to %s", from, to).
		WithDetails(map[string]string{"from": from, "to": to})
}
