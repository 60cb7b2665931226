package core

import (
	"fmt"
	"net/url"
)

// ConnectivityError is returned when a database cannot be reached or
// rejects the connection. It is surfaced to the user and never retried.
type ConnectivityError struct {
	Op     string // operation that needed the connection, e.g. "fetch schemas"
	Target string // redacted connection string
	Err    error
}

func (e *ConnectivityError) Error() string {
	msg := "could not connect to the database"
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// MalformedConnectionStringError is an input validation failure on a
// connection string. Input is kept for callers but never printed.
type MalformedConnectionStringError struct {
	Input  string
	Reason string
}

func (e *MalformedConnectionStringError) Error() string {
	return "malformed connection string: " + e.Reason
}

// MalformedResultError is returned when a connector payload does not decode
// into a QueryResult.
type MalformedResultError struct {
	Err error
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("malformed query result: %v", e.Err)
}

func (e *MalformedResultError) Unwrap() error { return e.Err }

// ExecutionError wraps a failed query run.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PersistenceError is returned when a store cannot write to its backing file.
// Staged changes are kept, so the save can be retried.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SerializationError is returned when a stored value cannot be encoded or decoded.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize value for key %q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// RedactConnectionString hides the password of a URL-style connection string.
// Strings that do not parse as URLs are returned without their userinfo part.
func RedactConnectionString(cs string) string {
	u, err := url.Parse(cs)
	if err != nil || u.Scheme == "" {
		return "<connection string>"
	}
	return u.Redacted()
}
