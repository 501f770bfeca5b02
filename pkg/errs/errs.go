// Package errs classifies domain errors into the kinds the transport layer
// and the batch jobs care about.
package errs

import "errors"

type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

// Error is a classified domain error. Packages declare their sentinels with
// the constructors below, so errors.Is matches the sentinel and KindOf
// recovers the class.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

func Validation(code string) *Error {
	return &Error{Kind: KindValidation, Code: code}
}

func Conflict(code string) *Error {
	return &Error{Kind: KindConflict, Code: code}
}

func NotFound(code string) *Error {
	return &Error{Kind: KindNotFound, Code: code}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind, true
	}
	return "", false
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

func IsValidation(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindValidation
}

func IsConflict(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindConflict
}

func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}

// BatchItemError records one failed item of a batch job. The job keeps going
// and returns the collected items alongside its counters.
type BatchItemError struct {
	SubscriberID string `json:"subscriber_id"`
	Period       string `json:"period,omitempty"`
	Reason       string `json:"reason"`
	Err          error  `json:"-"`
}

func NewBatchItemError(subscriberID, period string, err error) BatchItemError {
	reason := CodeOf(err)
	if reason == "" && err != nil {
		reason = err.Error()
	}
	return BatchItemError{
		SubscriberID: subscriberID,
		Period:       period,
		Reason:       reason,
		Err:          err,
	}
}

func (e BatchItemError) Error() string {
	if e.Period == "" {
		return "subscriber " + e.SubscriberID + ": " + e.Reason
	}
	return "subscriber " + e.SubscriberID + " period " + e.Period + ": " + e.Reason
}

func (e BatchItemError) Unwrap() error {
	return e.Err
}
