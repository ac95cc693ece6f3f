package internal

import "errors"

var (
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrDateParse             = errors.New("date format should be YYYY-MM-DD")
	ErrBackendUnreachable    = errors.New("backend unreachable")
	ErrBackendTimeout        = errors.New("backend timed out")
	ErrMalformedStreamRecord = errors.New("malformed stream record")
	ErrStreamConsumed        = errors.New("stream already consumed")
	ErrNoProvider            = errors.New("provider not available")
)

var (
	ErrUnknownPrompt  = errors.New("unknown prompt template")
	ErrNoRepositories = errors.New("no readable repositories")
)
