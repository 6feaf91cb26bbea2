package cloudauth

import "errors"

// ErrExchangeFailed is returned when the credential exchange endpoint
// rejects the request or cannot be reached.
var ErrExchangeFailed = errors.New("cloudauth: credential exchange failed")
