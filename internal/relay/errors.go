package relay

import (
	"errors"
	"fmt"
	"net"
)

// ConfigError is returned when a required setting is missing. No network call
// has been made when it is reported.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Error: Missing environment variable '%s'", e.Key)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FetchError covers connection failures, timeouts and non-2xx answers from the
// timesheet API.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Error fetching data from timesheet API: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch gave up on its deadline.
func (e *FetchError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// StorageError is an error returned by the object storage backend.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("Error uploading to object storage: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// UnexpectedError is anything else that went wrong during the storage phase,
// typically a recovered panic.
type UnexpectedError struct {
	Value any
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("An unexpected error occurred: %v", e.Value)
}

func (e *UnexpectedError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
