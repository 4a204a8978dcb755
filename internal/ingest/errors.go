package ingest

import "errors"

var (
	errEmptyPayload   = errors.New("ingest: empty payload")
	errInvalidPayload = errors.New("ingest: invalid payload shape")
)
