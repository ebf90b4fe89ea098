package contract

import "errors"

// Error is a named contract failure. Code is the stable reason surfaced to callers.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInsufficientPayment = &Error{Code: "InsufficientPayment", Message: "payment is lower than the fee"}
	ErrTrackNotFound       = &Error{Code: "TrackNotFound", Message: "track is not registered"}
	ErrNotAuthorized       = &Error{Code: "NotAuthorized", Message: "caller is not the owner"}
	ErrIndexOutOfBounds    = &Error{Code: "IndexOutOfBounds", Message: "registry index out of bounds"}
	ErrEmptyTitle          = &Error{Code: "EmptyTitle", Message: "title must not be empty"}
	ErrDuplicateTitle      = &Error{Code: "DuplicateTitle", Message: "title is already registered"}
	ErrUnknownCall         = &Error{Code: "UnknownCall", Message: "unknown entry point"}
	// ErrInsufficientFunds is raised by the host when the payer's balance cannot cover the payment coin.
	ErrInsufficientFunds = &Error{Code: "InsufficientFunds", Message: "account balance is lower than the payment"}
)

var known = []*Error{
	ErrInsufficientPayment,
	ErrTrackNotFound,
	ErrNotAuthorized,
	ErrIndexOutOfBounds,
	ErrEmptyTitle,
	ErrDuplicateTitle,
	ErrUnknownCall,
	ErrInsufficientFunds,
}

// Code returns the failure code carried by err, or "" when err is not a contract error.
func Code(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ""
}

// FromCode maps a code back to its sentinel. Unknown codes return nil.
func FromCode(code string) error {
	for _, e := range known {
		if e.Code == code {
			return e
		}
	}
	return nil
}
