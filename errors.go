// Copyright 2015 Google Inc. All Rights Reserved.

package asyncio

import "github.com/asyncio-project/asyncio/status"

// Sentinel errors a request handler may compare a returned error against
// with errors.Is, mirroring the kernel-errno constants the teacher
// re-exports in its own errors.go. Each wraps the matching Status so that
// code that wants the raw code can still type-assert or compare it
// directly via status.AsStatus.
var (
	ErrNotFound         error = status.NotFound
	ErrInvalidParameter error = status.InvalidParameter
	ErrTimeout          error = status.Timeout
	ErrCancelled        error = status.Cancelled
	ErrHandlesClosed    error = status.HandlesClosed
	ErrNoMemory         error = status.NoMemory
)
