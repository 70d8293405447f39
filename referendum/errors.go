// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"errors"
	"fmt"
)

var (
	ErrNegativeAmount   = errors.New("vote amount must not be negative")
	ErrUnknownThreshold = errors.New("unknown vote threshold")
	ErrNotActive        = errors.New("coordinator is not active")
	ErrAlreadyActive    = errors.New("coordinator already active")
)

// DataSourceError reports that the vote tally source answered with an error
// payload or could not be reached. It is surfaced to the caller and never
// retried.
type DataSourceError struct {
	ReferendumID uint32
	Message      string
	Cause        error
}

func (e *DataSourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("referendum %d: %s: %v", e.ReferendumID, e.Message, e.Cause)
	}
	return fmt.Sprintf("referendum %d: %s", e.ReferendumID, e.Message)
}

func (e *DataSourceError) Unwrap() error { return e.Cause }

// ConfigurationError names a required setting that is missing.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is required; set the %s environment variable", e.Setting, e.Setting)
}
