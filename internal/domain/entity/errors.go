package entity

import "errors"

var (
	// ErrConfiguration marks a missing or invalid setting detected before any candidate is processed
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth marks a credential that is missing or could not be refreshed
	ErrAuth = errors.New("authentication error")

	// ErrNoCredential is returned when the credential store holds no token
	ErrNoCredential = errors.New("no stored credential")

	// ErrMalformedOutput is returned when model output does not match the extraction schema
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrNoAttachment is returned when a message carries no qualifying PDF part
	ErrNoAttachment = errors.New("no qualifying attachment")
)

// IsFatal reports whether err must abort the whole invocation
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuth)
}
