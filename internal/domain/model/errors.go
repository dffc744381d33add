package model

import "fmt"

// ProviderError describes a failed call to the CI provider API.
type ProviderError struct {
	Op         string // e.g. "get branch", "list workflow runs".
	StatusCode int    // HTTP status, 0 when the request never got a response.
	Message    string // Provider supplied message, if any.
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.describe())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.describe())
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) describe() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}
