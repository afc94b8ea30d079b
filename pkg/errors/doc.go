// Package errors provides error handling utilities for the flox SDK.
//
// This package implements specialized error types and error handling functions
// to improve error management throughout the SDK. It focuses on providing
// rich context for errors while maintaining compatibility with the standard
// error handling practices.
//
// # Features
//
//   - Error wrapping with context
//   - Structured error types for git, lock, and configuration failures
//   - Standardized error formatting
//
// # Usage
//
// Basic error wrapping:
//
//	if err != nil {
//	    return errors.Wrap(err, "failed to open file")
//	}
//
// Inspecting a git failure:
//
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) {
//	    fmt.Println(gitErr.Operation, gitErr.Output)
//	}
//
// # Error Wrapping
//
// The package uses standard error wrapping conventions, allowing errors to be
// unwrapped and inspected using errors.Is and errors.As.
//
// # Compatibility
//
// The package is fully compatible with the standard library errors package
// and can be used as a drop-in replacement with additional functionality.
//
// # Thread Safety
//
// All types and functions in this package are safe for concurrent use
// by multiple goroutines.
package errors
