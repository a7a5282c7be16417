// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"errors"
	"fmt"
)

// Status is the abstract completion-code kind used throughout the async
// core: an IOSB's terminal status, the status delivered in an APC, the
// status posted to a completion port. It is deliberately open-ended — a
// caller of Terminate or RequestComplete may inject any status it likes, the
// way the original server lets callers pass arbitrary NTSTATUS values.
type Status uint32

// The handful of statuses the core itself assigns or special-cases. Any
// other value is a caller-supplied completion code and is treated as a
// final, non-pending, non-alerted status.
const (
	// Pending means the operation has not yet terminated.
	Pending Status = 0

	// Success is the ordinary non-pending, successful completion.
	Success Status = 1

	// Alerted is both a state (see Async.State) and a status: a client has
	// been notified and must retrieve extra data via GetAsyncResult before
	// the operation is truly final.
	Alerted Status = 2

	// Cancelled is delivered by CancelAsync via FD.CancelAsync.
	Cancelled Status = 3

	// Timeout is whatever status the caller chose when arming the timer;
	// this constant is just a conventional default.
	Timeout Status = 4

	// HandlesClosed is delivered by FreeQueue when an fd goes away with
	// asyncs still queued on it.
	HandlesClosed Status = 5

	// InvalidParameter is returned synchronously by CreateAsync and
	// CreateRequestAsync on a validation failure; it never appears as an
	// iosb status.
	InvalidParameter Status = 6

	// NotFound is returned by the CancelAsync request handler when an iosb
	// cookie filter was given and nothing matched.
	NotFound Status = 7

	// NoMemory is returned synchronously by CreateRequestAsync when its
	// iosb or wait handle cannot be allocated. RequestCompleteAlloc's copy
	// has no failure path, so it never delivers this status.
	NoMemory Status = 8
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Success:
		return "SUCCESS"
	case Alerted:
		return "ALERTED"
	case Cancelled:
		return "CANCELLED"
	case Timeout:
		return "TIMEOUT"
	case HandlesClosed:
		return "HANDLES_CLOSED"
	case InvalidParameter:
		return "INVALID_PARAMETER"
	case NotFound:
		return "NOT_FOUND"
	case NoMemory:
		return "NO_MEMORY"
	default:
		return fmt.Sprintf("STATUS(%d)", uint32(s))
	}
}

// IsPending reports whether s represents an outstanding, non-terminal
// operation.
func (s Status) IsPending() bool { return s == Pending }

// IsError reports whether s should be treated the way the original server
// treats NT_ERROR(status): a failure that, combined with !pending in
// Handoff, means the async was never successfully queued.
//
// Every status other than Pending and Success is an error for this
// purpose, mirroring the C core's habit of using STATUS_PENDING and
// "everything else" as the only two categories that matter to async_handoff.
func (s Status) IsError() bool {
	return s != Pending && s != Success
}

// Error implements the error interface so a Status can be returned directly
// from functions with a conventional Go error-returning signature.
func (s Status) Error() string { return s.String() }

// AsStatus extracts a Status from err, if err is (or wraps) one.
func AsStatus(err error) (Status, bool) {
	if err == nil {
		return Success, true
	}
	var s Status
	if errors.As(err, &s) {
		return s, true
	}
	return 0, false
}
