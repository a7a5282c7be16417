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

package async

import (
	"time"

	"github.com/asyncio-project/asyncio/status"
)

// FD is the fd-subsystem collaborator. Everything here is out of scope for
// this package (§6 of the design): the async core calls into it, but never
// implements it itself.
//
// Must be safe for use by a single Core goroutine only; like the rest of
// this package, FD implementations are not required to be safe for
// concurrent use from multiple goroutines.
type FD interface {
	// Completion returns the completion port currently associated with the
	// fd, if any, along with the key to post completions under.
	Completion() (port CompletionPort, key uint64, ok bool)

	// Reselect asks the fd layer to re-evaluate readiness against queue,
	// possibly re-arming epoll/kqueue interest or delivering the next
	// alert immediately.
	Reselect(queue *Queue)

	// CancelAsync synchronously terminates a with Cancelled. The fd layer
	// is expected to call back into Terminate before returning.
	CancelAsync(a *Async)

	// Overlapped reports whether the fd may return Pending and complete
	// later (as opposed to always completing synchronously).
	Overlapped() bool

	// SetSignaled raises or lowers the fd's own signalled state, used when
	// no per-async event is registered.
	SetSignaled(bool)

	// User returns the client-visible object behind this fd, used by
	// CancelAsync's obj filter.
	User() any
}

// Thread is the thread/APC-delivery collaborator.
type Thread interface {
	// QueueAPC asynchronously delivers apc to the thread. Implementations
	// may, in the same exceptional cases the original server documents
	// (e.g. the target thread or process is already gone), invoke the
	// corresponding Core completion method synchronously before
	// returning — callers of Terminate already grab a temporary reference
	// across the call for exactly this reason.
	QueueAPC(apc APC) error

	// ProcessID returns the OS process ID hosting this thread. The async
	// core does not call it; MonitorProcess watches Process.PID instead.
	ProcessID() int
}

// APCKind distinguishes the two wire-visible APC payload shapes from §6.
type APCKind int

const (
	// APCAsyncIO carries a completion notification to be picked up by the
	// client's async I/O dispatch.
	APCAsyncIO APCKind = iota
	// APCUser invokes a client-supplied function pointer directly.
	APCUser
)

// APC is the payload queued to a client thread by Terminate (APCAsyncIO) or
// SetResult (APCUser).
type APC struct {
	Kind APCKind

	// Populated for APCAsyncIO.
	User   uintptr
	IOSB   uintptr
	Status status.Status

	// Populated for APCUser. IOSB carries the same client iosb cookie as
	// the APCAsyncIO case above.
	Func       uintptr
	ApcContext uintptr
}

// CompletionPort is the completion-port collaborator.
type CompletionPort interface {
	// AddCompletion posts one completion record.
	AddCompletion(key uint64, cvalue uintptr, st status.Status, information uint32)
}

// EventObject is the event-primitive collaborator.
type EventObject interface {
	Set()
	Reset()
}

// Timer is a handle to a single armed timeout, returned by TimeoutSource.
type Timer interface {
	// Stop cancels the timer. Stopping an already-fired or already-stopped
	// timer is a no-op.
	Stop()
}

// TimeoutSource is the timer collaborator (add_timeout_user /
// remove_timeout_user in §6).
type TimeoutSource interface {
	// AddTimeoutUser arms a one-shot timer that calls fire after d. The
	// returned Timer can be used to cancel it early.
	AddTimeoutUser(d time.Duration, fire func()) Timer
}

// Handle is an opaque, process-local handle table entry.
type Handle uint64

// HandleTable is the handle-table collaborator.
type HandleTable interface {
	// Alloc installs obj in the table and returns a new handle for it.
	Alloc(obj any, access uint32) (Handle, error)

	// Close releases a handle previously returned by Alloc.
	Close(h Handle) error
}

// SYNCHRONIZE is the access mask CreateRequestAsync requests for the
// wait handle it preallocates, matching the original server's use of
// SYNCHRONIZE as the sole access right on an async's wait handle.
const SYNCHRONIZE uint32 = 0x00100000

// EventModifyState is the access right a caller should request when
// resolving a client-supplied event handle into an EventObject before
// populating Data.Event, matching the original server's EVENT_MODIFY_STATE.
const EventModifyState uint32 = 0x0002
