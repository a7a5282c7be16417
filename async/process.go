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
	"fmt"

	"github.com/jacobsa/syncutil"

	"github.com/asyncio-project/asyncio/status"
)

// Process owns the set of asyncs created on behalf of one client process:
// the registry cancel_async and the process-exit teardown path both scan.
//
// Unlike Async and Queue, Process's own list (and its exited-once flag) is
// guarded by a real mutex: MonitorProcess touches it from its own polling
// goroutine, concurrently with whatever goroutine is driving the async
// core. Adding or removing a list entry, and flipping exitedOnce, never
// recurses (unlike Async's state transitions), so the usual
// invariant-checked-mutex idiom applies cleanly here. That mutex's
// protection ends there, though: MonitorProcess is never permitted to call
// Terminate or TearDown itself — see Exited.
type Process struct {
	pid int

	// mu guards asyncs and exitedOnce.
	//
	// INVARIANT: no element of asyncs is nil
	// INVARIANT: no element of asyncs appears twice
	mu     syncutil.InvariantMutex
	asyncs []*Async // GUARDED_BY(mu)

	// exited is closed exactly once, by MonitorProcess, when the client
	// process it watches disappears. It carries no payload: the only thing
	// a receiver needs is the wakeup, since TearDown itself must still run
	// on whatever goroutine serializes this process's asyncs, not on
	// MonitorProcess's own polling goroutine.
	exited     chan struct{}
	exitedOnce bool // GUARDED_BY(mu); true once markExited has run
}

// NewProcess creates an (initially empty) registry for the client process
// identified by pid. pid may be zero if the caller has no OS process to
// monitor (e.g. in tests).
func NewProcess(pid int) *Process {
	p := &Process{pid: pid, exited: make(chan struct{})}
	p.mu = syncutil.NewInvariantMutex(p.checkInvariants)
	return p
}

// Exited returns a channel that is closed once MonitorProcess has observed
// this process's OS PID disappear. The owner of the goroutine that
// serializes this Process's asyncs must select on it (alongside whatever
// else drives that goroutine) and call TearDown itself when it fires —
// MonitorProcess only detects the exit, it never tears anything down.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// markExited closes the exited channel, waking up anything selecting on
// Exited. Safe to call more than once (e.g. a racing explicit Forget).
func (p *Process) markExited() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exitedOnce {
		return
	}
	p.exitedOnce = true
	close(p.exited)
}

func (p *Process) checkInvariants() {
	seen := make(map[*Async]struct{}, len(p.asyncs))
	for i, a := range p.asyncs {
		if a == nil {
			panic(fmt.Sprintf("nil async at index %d", i))
		}
		if _, ok := seen[a]; ok {
			panic("duplicate async in process list")
		}
		seen[a] = struct{}{}
	}
}

// PID returns the OS process ID this registry was created for.
func (p *Process) PID() int { return p.pid }

func (p *Process) addAsync(a *Async) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asyncs = append(p.asyncs, a)
}

func (p *Process) removeAsync(a *Async) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.asyncs {
		if other == a {
			p.asyncs = append(p.asyncs[:i], p.asyncs[i+1:]...)
			return
		}
	}
}

// snapshot returns a copy of the current async list, safe to range over
// while the real list mutates underneath (e.g. from a reentrant Terminate).
func (p *Process) snapshot() []*Async {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Async(nil), p.asyncs...)
}

// CancelFilter narrows CancelAsync to a subset of a process's outstanding
// asyncs, mirroring cancel_async's three independent, optional filters.
type CancelFilter struct {
	// Obj, if non-nil, restricts cancellation to asyncs whose effective fd
	// reports this User().
	Obj any

	// Thread, if non-nil, restricts cancellation to asyncs queued on behalf
	// of this thread.
	Thread Thread

	// IOSBCookie, if HasIOSBCookie, restricts cancellation to the async
	// whose client-supplied iosb cookie (Data.IOSB) equals this value — at
	// most one such async exists, per spec.
	IOSBCookie    uintptr
	HasIOSBCookie bool
}

func (f CancelFilter) matches(a *Async) bool {
	if f.Obj != nil {
		fd := a.effectiveFD()
		if fd == nil || fd.User() != f.Obj {
			return false
		}
	}
	if f.Thread != nil && a.thread != f.Thread {
		return false
	}
	if f.HasIOSBCookie && a.data.IOSB != f.IOSBCookie {
		return false
	}
	return true
}

// CancelAsync terminates, with status.Cancelled, every outstanding async
// matching filter, and reports how many were cancelled. Matching an async
// whose effective fd has already gone (the async is mid-teardown) does not
// count as a match.
//
// Cancellation re-scans the list from the start after each match, the way
// cancel_async does, because terminating one async can — through a fd's
// CancelAsync implementation re-entering this package — mutate the list
// out from under a simple range loop.
func (p *Process) CancelAsync(filter CancelFilter) (cancelled int) {
restart:
	for _, a := range p.snapshot() {
		if a.terminated {
			continue
		}
		if !filter.matches(a) {
			continue
		}

		fd := a.effectiveFD()
		if fd == nil {
			continue
		}

		fd.CancelAsync(a)
		cancelled++
		goto restart
	}
	return
}

// FindByUser returns the async registered with the given client-supplied
// user cookie, terminated or not, or nil. Used by GetAsyncResult, which
// reads whatever iosb.Status is current regardless of completion state.
func (p *Process) FindByUser(user uintptr) *Async {
	for _, a := range p.snapshot() {
		if a.data.User == user {
			return a
		}
	}
	return nil
}

// TearDown terminates every outstanding async in the registry with st,
// queued or not, and reports how many it terminated. Used when the client
// process itself has gone away — distinct from FreeQueue, which models a
// single fd going away.
func (p *Process) TearDown(st status.Status) (terminated int) {
	for _, a := range p.snapshot() {
		if !a.terminated {
			Terminate(a, st)
			terminated++
		}
	}
	return
}
