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

import "github.com/asyncio-project/asyncio/status"

// Queue is the per-fd ordered list of pending asyncs described in §3: FIFO
// order, tail-append, head-inspect, bulk teardown. Queue membership implies
// the queue holds a strong reference to the async.
//
// Like Async, Queue is not safe for concurrent use: the fd layer's calls
// into Reselect, and the async core's calls into QueueAsync/WakeUp/FreeQueue,
// must all be serialized onto a single goroutine by the caller.
type Queue struct {
	fd     FD
	asyncs []*Async
}

// NewQueue creates an (initially empty) queue bound to fd.
func NewQueue(fd FD) *Queue {
	return &Queue{fd: fd}
}

// FD returns the fd this queue belongs to.
func (q *Queue) FD() FD { return q.fd }

// Len reports the number of asyncs currently queued.
func (q *Queue) Len() int { return len(q.asyncs) }

// QueueAsync appends a to the tail of q. The async's direct fd reference is
// released — the queue now represents that binding — and the fd's own
// signalled flag is cleared, matching queue_async.
func QueueAsync(q *Queue, a *Async) {
	releaseIfRetainable(a.fd)
	a.fd = nil
	a.queue = q
	a.Retain()
	q.asyncs = append(q.asyncs, a)
	q.fd.SetSignaled(false)
}

// removeFromQueue detaches a from q without touching its terminated state.
// Used by SetResult once an async finalizes while still queued.
func (q *Queue) removeFromQueue(a *Async) {
	for i, other := range q.asyncs {
		if other == a {
			q.asyncs = append(q.asyncs[:i], q.asyncs[i+1:]...)
			return
		}
	}
}

// FindPendingAsync returns a new strong reference to the first
// non-terminated entry in q, or nil.
func FindPendingAsync(q *Queue) *Async {
	for _, a := range q.asyncs {
		if !a.terminated {
			return a.Retain()
		}
	}
	return nil
}

// Waiting reports whether the head of the queue is still waiting to be
// alerted — the fd layer's natural "is there anyone left to notify" check.
func Waiting(q *Queue) bool {
	if len(q.asyncs) == 0 {
		return false
	}
	return !q.asyncs[0].terminated
}

// WakeUp terminates every async on q with st. If st is status.Alerted, only
// the head is processed — alerted notifications are delivered one at a time,
// in FIFO order, per §5.
func WakeUp(q *Queue, st status.Status) {
	// Snapshot: Terminate can synchronously trigger SetResult, which removes
	// its async from q.asyncs. Walking the live slice by index would skip or
	// re-visit entries across such a mutation.
	snapshot := append([]*Async(nil), q.asyncs...)
	for _, a := range snapshot {
		Terminate(a, st)
		if st == status.Alerted {
			return
		}
	}
}

// FreeQueue tears down every async still on q, the way fd destruction must:
// each async is terminated with status.HandlesClosed after being given one
// last chance to post a completion through the fd's (about to vanish)
// completion port.
func FreeQueue(q *Queue) {
	snapshot := append([]*Async(nil), q.asyncs...)
	q.asyncs = nil

	for _, a := range snapshot {
		if a.completion == nil {
			if port, key, ok := q.fd.Completion(); ok {
				a.completion = port
				a.compKey = key
				retainIfRetainable(port)
			}
		}
		a.fd = nil
		Terminate(a, status.HandlesClosed)
		a.queue = nil
		a.Release()
	}
}
