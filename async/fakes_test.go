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

// fakeFD is a minimal FD collaborator. Its fields are read and set directly
// by tests in this package, both to drive it and to inspect what the core
// did to it.
type fakeFD struct {
	refs int

	user       any
	overlapped bool
	signaled   bool

	completionPort CompletionPort
	completionKey  uint64
	hasCompletion  bool

	reselected   int
	cancelled    []*Async
	cancelledFds int
}

func newFakeFD(user any) *fakeFD {
	return &fakeFD{refs: 1, user: user}
}

func (f *fakeFD) Retain()  { f.refs++ }
func (f *fakeFD) Release() { f.refs-- }

func (f *fakeFD) Completion() (CompletionPort, uint64, bool) {
	return f.completionPort, f.completionKey, f.hasCompletion
}

func (f *fakeFD) Reselect(queue *Queue) { f.reselected++ }

func (f *fakeFD) CancelAsync(a *Async) {
	f.cancelled = append(f.cancelled, a)
	Terminate(a, status.Cancelled)
}

func (f *fakeFD) Overlapped() bool { return f.overlapped }

func (f *fakeFD) SetSignaled(v bool) { f.signaled = v }

func (f *fakeFD) User() any { return f.user }

// fakeThread is a minimal Thread collaborator. It records every APC it is
// asked to deliver; if reenter is set, it invokes reenter synchronously
// before returning, modeling the "target thread already gone" case
// Terminate's temporary-reference idiom guards against.
type fakeThread struct {
	refs    int
	pid     int
	apcs    []APC
	reenter func(apc APC)
}

func newFakeThread(pid int) *fakeThread {
	return &fakeThread{refs: 1, pid: pid}
}

func (t *fakeThread) Retain()  { t.refs++ }
func (t *fakeThread) Release() { t.refs-- }

func (t *fakeThread) QueueAPC(apc APC) error {
	t.apcs = append(t.apcs, apc)
	if t.reenter != nil {
		t.reenter(apc)
	}
	return nil
}

func (t *fakeThread) ProcessID() int { return t.pid }

func (t *fakeThread) lastAPC() (APC, bool) {
	if len(t.apcs) == 0 {
		return APC{}, false
	}
	return t.apcs[len(t.apcs)-1], true
}

// fakeCompletionPort records every completion posted to it.
type fakeCompletionPort struct {
	refs        int
	completions []fakeCompletion
}

type fakeCompletion struct {
	key         uint64
	cvalue      uintptr
	status      status.Status
	information uint32
}

func (p *fakeCompletionPort) Retain()  { p.refs++ }
func (p *fakeCompletionPort) Release() { p.refs-- }

func (p *fakeCompletionPort) AddCompletion(key uint64, cvalue uintptr, st status.Status, information uint32) {
	p.completions = append(p.completions, fakeCompletion{key, cvalue, st, information})
}

// fakeEvent is a minimal EventObject collaborator.
type fakeEvent struct {
	refs       int
	signaled   bool
	setCount   int
	resetCalls int
}

func (e *fakeEvent) Retain()  { e.refs++ }
func (e *fakeEvent) Release() { e.refs-- }

func (e *fakeEvent) Set() {
	e.signaled = true
	e.setCount++
}

func (e *fakeEvent) Reset() {
	e.signaled = false
	e.resetCalls++
}

// fakeTimeoutSource hands back a fakeTimer the test controls directly,
// instead of a real time.Timer, so timeout tests never sleep.
type fakeTimeoutSource struct {
	armed []*fakeTimer
}

type fakeTimer struct {
	fire    func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

func (t *fakeTimer) trigger() {
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	t.fire()
}

func (s *fakeTimeoutSource) AddTimeoutUser(d time.Duration, fire func()) Timer {
	t := &fakeTimer{fire: fire}
	s.armed = append(s.armed, t)
	return t
}

func (s *fakeTimeoutSource) last() *fakeTimer {
	if len(s.armed) == 0 {
		return nil
	}
	return s.armed[len(s.armed)-1]
}

// fakeHandleTable is a minimal HandleTable collaborator.
type fakeHandleTable struct {
	next    Handle
	objects map[Handle]any
	closed  []Handle
}

func newFakeHandleTable() *fakeHandleTable {
	return &fakeHandleTable{objects: make(map[Handle]any)}
}

func (h *fakeHandleTable) Alloc(obj any, access uint32) (Handle, error) {
	h.next++
	h.objects[h.next] = obj
	return h.next, nil
}

func (h *fakeHandleTable) Close(handle Handle) error {
	delete(h.objects, handle)
	h.closed = append(h.closed, handle)
	return nil
}

// fakePayload is a minimal RequestPayload.
type fakePayload struct {
	reqData      []byte
	replyMaxSize uint32
	replyData    []byte
}

func (p *fakePayload) ReqData() []byte        { return p.reqData }
func (p *fakePayload) ReplyMaxSize() uint32   { return p.replyMaxSize }
func (p *fakePayload) SetReplyData(d []byte)  { p.replyData = d }
