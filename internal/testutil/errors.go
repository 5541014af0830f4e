// Package testutil provides testing utilities for keel.
//
// It contains mock errors and a throwaway git repository fixture. It should
// only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockIndexLock mimics git failing on a held index.lock.
	ErrMockIndexLock = errors.New("fatal: Unable to create '/repo/.git/index.lock': File exists.")

	// ErrMockNetwork indicates a mock network error occurred.
	ErrMockNetwork = errors.New("network error")
)
