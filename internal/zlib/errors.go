package zlib

import (
	"errors"

	"github.com/billmal071/zlibdl/internal/transport"
)

var (
	// ErrEmptyQuery indicates a blank search string
	ErrEmptyQuery = errors.New("search query is empty")
	// ErrNoMirror indicates mirror probing did not yield a usable host
	ErrNoMirror = errors.New("no working mirror available")
	// ErrAuthFailed indicates login did not produce session cookies
	ErrAuthFailed = errors.New("authentication failed")
	// ErrParse indicates expected markup was absent from a page
	ErrParse = errors.New("unexpected page structure")
	// ErrInvalidQuery indicates a full-text query that cannot be issued
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotInitialized indicates a search was attempted before Init
	ErrNotInitialized = errors.New("client not initialized")
)

// Transport error kinds, re-exported so callers can match on one package.
var (
	ErrTimeout     = transport.ErrTimeout
	ErrCancelled   = transport.ErrCancelled
	ErrProxyConfig = transport.ErrProxyConfig
)
