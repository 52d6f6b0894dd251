package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	ErrorNetwork  ErrorKind = "network"
	ErrorTimeout  ErrorKind = "timeout"
	ErrorAuth     ErrorKind = "auth"
	ErrorHTTP     ErrorKind = "http"
	ErrorParse    ErrorKind = "parse"
	ErrorNotFound ErrorKind = "not_found"
	ErrorConfig   ErrorKind = "config"
)

// FetchError reports a failure reaching or understanding a CI server.
type FetchError struct {
	Kind       ErrorKind
	Server     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("fetch %s", e.Server)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " [" + string(e.Kind) + "]"
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the FetchError kind wrapped in err, or "" when err is not a fetch failure.
func KindOf(err error) ErrorKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return ""
}

func newFetchError(kind ErrorKind, server string, err error) *FetchError {
	return &FetchError{Kind: kind, Server: server, Err: err}
}

// transportError classifies an error returned by http.Client.Do.
func transportError(server string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newFetchError(ErrorTimeout, server, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newFetchError(ErrorTimeout, server, err)
	}
	return newFetchError(ErrorNetwork, server, err)
}

func statusError(server string, code int, body string) *FetchError {
	kind := ErrorHTTP
	switch code {
	case 401, 403:
		kind = ErrorAuth
	case 404:
		kind = ErrorNotFound
	}
	var err error
	if body != "" {
		err = errors.New(body)
	}
	return &FetchError{Kind: kind, Server: server, StatusCode: code, Err: err}
}
