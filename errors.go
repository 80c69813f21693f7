package citelens

import "errors"

var (
	// ErrSourceNotFound is returned when a source ID does not exist.
	ErrSourceNotFound = errors.New("citelens: source not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("citelens: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("citelens: parsing failed")

	// ErrLLMRequestFailed is returned when an LLM request fails.
	ErrLLMRequestFailed = errors.New("citelens: LLM request failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("citelens: invalid configuration")

	// ErrInvalidPayload is returned when a payload file cannot be decoded.
	ErrInvalidPayload = errors.New("citelens: invalid payload")

	// ErrRemoteParserRequired is returned when a format needs the remote
	// parsing service and it is not configured.
	ErrRemoteParserRequired = errors.New("citelens: remote parser required for this format")
)
