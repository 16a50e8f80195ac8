package service

import "errors"

var (
	// ErrRequestNotFound is returned when the purchase request does not exist.
	ErrRequestNotFound = errors.New("purchase request not found")

	// ErrValidationFailed is returned for malformed business input, such as a
	// non-positive amount or a missing title.
	ErrValidationFailed = errors.New("validation failed")

	// ErrForbidden is returned when the caller is not allowed to act on the
	// resource, e.g. editing someone else's request.
	ErrForbidden = errors.New("operation not permitted for this user")

	// ErrNotEditable is returned when a request can no longer be changed
	// because an approver already acted on it.
	ErrNotEditable = errors.New("request can no longer be edited")

	// ErrReceiptNotAllowed is returned when a receipt is submitted before the
	// request is fully approved or after one was already uploaded.
	ErrReceiptNotAllowed = errors.New("receipt cannot be submitted for this request")
)
