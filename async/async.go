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

// Package async implements the asynchronous I/O state machine: one Async
// per outstanding I/O request, queued on a per-fd Queue, registered with the
// owning Process, and driven to completion either synchronously (the fast
// path) or via a collaborator callback (Terminate/SetResult, the slow path).
//
// Async and Queue are not safe for concurrent use. A single caller —
// conventionally a per-process dispatch goroutine — must serialize every
// call into this package for a given Process's asyncs. Process's own list
// is the one exception: it is safe to read concurrently with MonitorProcess.
package async

import (
	"sync/atomic"
	"time"

	"golang.org/x/net/context"

	"github.com/asyncio-project/asyncio/iosb"
	"github.com/asyncio-project/asyncio/status"
)

// retainable is an optional capability a collaborator may implement to
// receive Retain/Release notifications as an async that holds it is created
// or torn down. None of the collaborator interfaces require it — Go's
// garbage collector makes manual refcounting unnecessary for memory
// management — but it lets a test observe whether every collaborator
// reaches a matching release.
type retainable interface {
	Retain()
	Release()
}

func retainIfRetainable(x any) {
	if r, ok := x.(retainable); ok {
		r.Retain()
	}
}

func releaseIfRetainable(x any) {
	if r, ok := x.(retainable); ok {
		r.Release()
	}
}

// Data is the client-supplied description of an async I/O call: who to
// notify and how.
type Data struct {
	// User is the client-side cookie identifying this operation; carried in
	// the APCAsyncIO payload and matched by GetAsyncResult.
	User uintptr

	// IOSB is the client-side pointer to the iosb structure the client
	// expects updates written into; carried in both APC payload kinds and
	// matched by Process.CancelAsync's optional iosb filter.
	IOSB uintptr

	// ApcFunc, if non-zero, is a client function pointer SetResult invokes
	// (via an APCUser payload) instead of going through the completion
	// port. ApcContext is passed back to it untouched.
	ApcFunc    uintptr
	ApcContext uintptr

	// Event, if non-nil, is reset at creation and set on completion —
	// already resolved by the caller from whatever handle the client
	// passed in.
	Event EventObject
}

// Async is one outstanding (or just-completed) asynchronous I/O operation.
// See the package doc comment for the concurrency contract.
type Async struct {
	refs int32

	thread Thread
	fd     FD // non-nil while unqueued; nil while queued, per Queue's own fd
	queue  *Queue

	data Data

	iosbRef *iosb.IOSB

	timeoutSrc    TimeoutSource
	timeout       Timer
	timeoutStatus status.Status

	completion CompletionPort
	compKey    uint64
	compFlags  uint32

	completionCallback func(private any)
	completionPrivate  any

	waitHandle Handle
	handles    HandleTable
	process    *Process

	signaled      bool
	pending       bool
	directResult  bool
	alerted       bool
	terminated    bool
	unknownStatus bool

	trace lifecycleTrace
}

// State is a human-readable summary of an async's flag tuple, layered over
// the raw fields purely for introspection and logging — the flags
// themselves remain the source of truth the state machine mutates.
type State int

const (
	StateUnknown State = iota
	StatePending
	StateQueued
	StateAlerted
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateQueued:
		return "queued"
	case StateAlerted:
		return "alerted"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// State summarizes a's current flag tuple for logging.
func (a *Async) State() State {
	switch {
	case a.alerted:
		return StateAlerted
	case a.terminated:
		return StateTerminated
	case a.queue != nil:
		return StateQueued
	case a.pending:
		return StatePending
	default:
		return StateUnknown
	}
}

func (a *Async) checkInvariants() {
	// INVARIANT: at most one of queue/fd is non-nil. Both are nil once
	// SetResult or FreeQueue has detached a queued async from its queue.
	if a.queue != nil && a.fd != nil {
		panic("async: both queue and fd set")
	}

	// A terminated async that is still queued appears on that queue's list
	// exactly once; this is not checked here (nor by Queue), to avoid an
	// O(n) scan on every mutation.

	// INVARIANT: alerted implies terminated (set_async_pending never clears
	// alerted; only SetResult's restart path does, and it clears terminated
	// in the same step).
	if a.alerted && !a.terminated {
		panic("async: alerted without terminated")
	}

	if a.refs < 0 {
		panic("async: negative refcount")
	}
}

// IOSB returns a's iosb without transferring ownership; the caller must not
// Release it. Used by GetAsyncResult to read the final status/result/
// out-data of a completed request-based async.
func (a *Async) IOSB() *iosb.IOSB { return a.iosbRef }

// Thread returns the thread that owns a.
func (a *Async) Thread() Thread { return a.thread }

// WaitHandle returns a's pre-allocated wait handle, or 0 if none (or
// already closed).
func (a *Async) WaitHandle() Handle { return a.waitHandle }

// effectiveFD returns the fd an async should currently be attributed to for
// filtering purposes: its own, if unqueued, or its queue's, if queued.
// Returns nil once the async has been fully torn down.
func (a *Async) effectiveFD() FD {
	if a.fd != nil {
		return a.fd
	}
	if a.queue != nil {
		return a.queue.fd
	}
	return nil
}

// Retain returns a new strong reference to a.
func (a *Async) Retain() *Async {
	atomic.AddInt32(&a.refs, 1)
	return a
}

// Release drops a strong reference, tearing a down when the last one goes.
func (a *Async) Release() {
	if atomic.AddInt32(&a.refs, -1) != 0 {
		return
	}
	a.destroy()
}

func (a *Async) destroy() {
	a.process.removeAsync(a)

	if a.queue != nil {
		a.queue.removeFromQueue(a)
		a.reselect()
	} else {
		releaseIfRetainable(a.fd)
	}

	if a.timeout != nil {
		a.timeout.Stop()
		a.timeout = nil
	}
	releaseIfRetainable(a.completion)
	releaseIfRetainable(a.data.Event)
	if a.iosbRef != nil {
		a.iosbRef.Release()
	}
	releaseIfRetainable(a.thread)

	a.trace.finish(statusError(a.iosbFinalStatus()))
}

func (a *Async) iosbFinalStatus() status.Status {
	if a.iosbRef == nil {
		return status.Success
	}
	return a.iosbRef.Status()
}

func statusError(st status.Status) error {
	if !st.IsError() {
		return nil
	}
	return st
}

func (a *Async) reselect() {
	if a.queue != nil {
		a.queue.fd.Reselect(a.queue)
	}
}

// CreateAsync creates a new async bound to fd and thread. data.Event, if
// set, must already have been resolved by the caller (typically from a
// client-supplied handle looked up with EventModifyState access) — the
// async core never looks up handles itself. iosbRef, if non-nil, is
// retained for the lifetime of the async.
//
// CreateAsync fails with status.InvalidParameter if fd already has a
// completion port and data.ApcFunc is set — the two notification
// mechanisms are mutually exclusive, as in the original server.
func CreateAsync(
	ctx context.Context,
	p *Process,
	fd FD,
	thread Thread,
	data Data,
	iosbRef *iosb.IOSB,
) (*Async, status.Status) {
	completion, compKey, _ := fd.Completion()
	if completion != nil && data.ApcFunc != 0 {
		return nil, status.InvalidParameter
	}

	_, trace := startLifecycleTrace(ctx, "Async")

	a := &Async{
		refs:       1,
		thread:     thread,
		fd:         fd,
		data:       data,
		iosbRef:    iosbRef,
		pending:    true,
		completion: completion,
		compKey:    compKey,
		process:    p,
		trace:      trace,
	}

	retainIfRetainable(thread)
	retainIfRetainable(fd)
	retainIfRetainable(completion)
	retainIfRetainable(data.Event)
	if iosbRef != nil {
		iosbRef.Retain()
	}

	p.addAsync(a)

	if data.Event != nil {
		data.Event.Reset()
	}

	a.checkInvariants()
	return a, status.Success
}

// SetPending marks a as pending (still outstanding), optionally signaling
// it if it was not already signaled — the Go analogue of
// set_async_pending.
func SetPending(a *Async, signal bool) {
	defer a.checkInvariants()

	if a.terminated {
		return
	}
	a.pending = true
	a.unknownStatus = false
	if signal && !a.signaled {
		a.signaled = true
	}
}

// SetUnknownStatus marks a's initial status as not yet known — Handoff will
// report status.Pending until a later SetPending/Terminate clears it.
func SetUnknownStatus(a *Async) {
	defer a.checkInvariants()
	a.unknownStatus = true
	a.directResult = false
}

// SetTimeout arms (or re-arms) a's timeout. A zero duration means no
// timeout; any existing timer is always stopped first.
func SetTimeout(a *Async, src TimeoutSource, d time.Duration, st status.Status) {
	defer a.checkInvariants()

	if a.timeout != nil {
		a.timeout.Stop()
		a.timeout = nil
	}
	a.timeoutSrc = src
	a.timeoutStatus = st
	if d > 0 {
		a.timeout = src.AddTimeoutUser(d, func() {
			a.timeout = nil
			Terminate(a, a.timeoutStatus)
		})
	}
}

// SetCompletionCallback installs a callback to run once, the next time a
// completes via SetResult. Installing a new callback replaces any pending
// one. The callback is cleared before it is invoked, so a callback that
// itself calls SetResult again will not be re-entered through this path.
func SetCompletionCallback(a *Async, fn func(private any), private any) {
	defer a.checkInvariants()
	a.completionCallback = fn
	a.completionPrivate = private
}

// Handoff returns the wait handle and status to report back to the client
// for a newly-dispatched (or already-completed) request-based async,
// mirroring async_handoff. lastError is the status the fast-path attempt
// just produced (status.Pending if it queued for later completion);
// *result receives the iosb's byte count if the operation already
// completed. forceBlocking suppresses the wait-handle-closing optimization
// for overlapped fds that expect to poll instead of block.
//
// Precondition: if lastError is a non-Pending error and a is not pending,
// the iosb must already carry a terminal status — Handoff only closes the
// wait handle in that case, it does not itself terminate the async.
func Handoff(a *Async, lastError status.Status, result *uint32, forceBlocking bool) (Handle, status.Status) {
	defer a.checkInvariants()

	if a.unknownStatus {
		return a.waitHandle, status.Pending
	}

	if !a.pending && lastError.IsError() {
		a.closeWaitHandle()
		return 0, lastError
	}

	if lastError != status.Pending {
		Terminate(a, lastError)
	}
	// If lastError was Pending but the iosb already carries a terminal
	// status (the fast path completed synchronously), the caller is
	// expected to have already moved iosbRef's out-data into the reply
	// payload via iosb.DetachOutData before calling Handoff — Handoff
	// itself has no reply sink to hand it to.

	st := a.iosbRef.Status()
	if st != status.Pending {
		if result != nil {
			*result = a.iosbRef.Result()
		}
		a.signaled = true
	} else {
		a.directResult = false
		a.pending = true
		if !forceBlocking && a.fd != nil && a.fd.Overlapped() {
			a.closeWaitHandle()
		}
	}

	return a.waitHandle, st
}

func (a *Async) closeWaitHandle() {
	if a.waitHandle == 0 {
		return
	}
	if a.handles != nil {
		_ = a.handles.Close(a.waitHandle)
	}
	a.waitHandle = 0
}

// Signaled reports whether a is currently ready for a waiter to acquire.
// It is a pure query with no side effects, mirroring async_signaled —
// Satisfied is the matching half that a waiter must run once it actually
// acquires a's wait handle.
func (a *Async) Signaled() bool {
	return a.signaled
}

// Satisfied runs the waitable-object "satisfied" half of the contract
// (async_satisfied): a caller representing a waiter must invoke it exactly
// once when that waiter acquires a's wait handle, whether by blocking on it
// or by finding it already Signaled.
//
// Handoff only ever reports a's status back through its own return value;
// for a request async that completed through the direct-result fast path,
// that means the completion-port post, the event set, and the completion
// callback SetResult would otherwise drive never ran. Satisfied is the one
// place that fan-out actually happens for such an async — it runs once the
// result is about to be handed to the waiter that asked for it — and it
// closes the wait handle afterward, saving the client an extra round trip
// to close it itself.
//
// Precondition: a was created via CreateRequestAsync (a carries an iosb)
// and is already Signaled. If a still has its direct-result flag set, it
// must also already be terminated (as after RequestComplete followed by
// Handoff): SetResult, called below in that case, panics on an async that
// was never terminated. Being Signaled alone does not imply that, since
// SetPending(a, true) signals an async without terminating it.
func Satisfied(a *Async) status.Status {
	defer a.checkInvariants()

	if a.iosbRef == nil {
		panic("async: Satisfied on an async with no iosb")
	}

	if a.directResult {
		SetResult(a, a.iosbRef.Status(), a.iosbRef.Result())
		a.directResult = false
	}

	st := a.iosbRef.Status()
	a.closeWaitHandle()
	return st
}

// Terminate notifies the client's thread of a's new status, exactly once.
// A second call on an already-terminated async is a no-op.
func Terminate(a *Async, st status.Status) {
	if a.terminated {
		return
	}

	iosbRef := a.iosbRef

	a.terminated = true
	if iosbRef != nil {
		iosbRef.SetStatus(st)
	}
	if st == status.Alerted {
		a.alerted = true
	}

	// thread_queue_apc may, in exceptional cases (the target thread or
	// process is already gone), synchronously invoke SetResult, which can
	// drop the last reference to a. Grab a temporary one across the call.
	a.Retain()
	defer a.Release()

	if !a.directResult {
		apc := APC{
			Kind:   APCAsyncIO,
			User:   a.data.User,
			IOSB:   a.data.IOSB,
			Status: st,
		}
		// If the result is nonzero or there is output data, the client needs
		// to make an extra request to retrieve it; signal that with Alerted.
		if iosbRef != nil && (iosbRef.Result() != 0 || iosbRef.OutData() != nil) {
			apc.Status = status.Alerted
		}
		_ = a.thread.QueueAPC(apc)
	}
	// A direct-result async gets no APC here; Satisfied runs the equivalent
	// notification once a waiter actually acquires the wait handle.

	a.reselect()
	a.checkInvariants()
}

// RequestComplete finalizes a request-based async with a pre-built output
// buffer, mirroring async_request_complete. A no-op if the async's iosb has
// already reached a terminal status (e.g. raced with cancellation).
func RequestComplete(a *Async, st status.Status, result uint32, outData []byte) {
	if !a.iosbRef.Complete(st, result, outData) {
		return
	}
	Terminate(a, st)
}

// RequestCompleteAlloc is RequestComplete, but copies src into a
// pool-owned buffer first, mirroring async_request_complete_alloc.
func RequestCompleteAlloc(a *Async, st status.Status, result uint32, src []byte) {
	if !iosb.CopyAndComplete(a.iosbRef, st, result, src) {
		return
	}
	Terminate(a, st)
}

// SetResult stores the result of a client-side async completion (APC
// return or completion-port pop). It must only be called on an already
// terminated async.
func SetResult(a *Async, st status.Status, total uint32) {
	if !a.terminated {
		panic("async: SetResult on an async that was never terminated")
	}
	defer a.checkInvariants()

	if a.alerted && st == status.Pending {
		// Restart: the client picked the alert up but has more to give us
		// later (e.g. it is about to issue the retrieval request).
		a.terminated = false
		a.alerted = false
		a.reselect()
		return
	}

	if a.timeout != nil {
		a.timeout.Stop()
		a.timeout = nil
	}
	a.terminated = true
	if a.iosbRef != nil {
		a.iosbRef.SetStatus(st)
	}

	switch {
	case a.data.ApcFunc != 0:
		_ = a.thread.QueueAPC(APC{
			Kind:       APCUser,
			Func:       a.data.ApcFunc,
			ApcContext: a.data.ApcContext,
			IOSB:       a.data.IOSB,
		})
	case a.data.ApcContext != 0 && (a.pending || a.compFlags&FileSkipCompletionPortOnSuccess == 0):
		a.addCompletion(a.data.ApcContext, st, total)
	}

	if a.data.Event != nil {
		a.data.Event.Set()
	} else if a.fd != nil {
		a.fd.SetSignaled(true)
	}
	if !a.signaled {
		a.signaled = true
	}

	if a.completionCallback != nil {
		cb, private := a.completionCallback, a.completionPrivate
		a.completionCallback = nil
		a.completionPrivate = nil
		cb(private)
	}

	a.reselect()

	if a.queue != nil {
		a.fd = nil
		a.queue.removeFromQueue(a)
		a.queue = nil
		a.Release()
	}
}

// FileSkipCompletionPortOnSuccess mirrors the matching Windows
// FILE_SKIP_COMPLETION_PORT_ON_SUCCESS completion-mode flag: when set, a
// synchronously (pending == false) completed async does not post to the
// completion port.
const FileSkipCompletionPortOnSuccess uint32 = 0x1

func (a *Async) addCompletion(cvalue uintptr, st status.Status, information uint32) {
	if a.fd != nil && a.completion == nil {
		a.completion, a.compKey, _ = a.fd.Completion()
		retainIfRetainable(a.completion)
	}
	if a.completion != nil {
		a.completion.AddCompletion(a.compKey, cvalue, st, information)
	}
}
