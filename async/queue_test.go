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
	"testing"

	"golang.org/x/net/context"

	"github.com/asyncio-project/asyncio/status"
)

func TestQueueAsync_AppendsInFIFOOrderAndClearsFd(t *testing.T) {
	fd := newFakeFD("obj")
	thread := newFakeThread(1)
	p := NewProcess(1)
	q := NewQueue(fd)

	a1, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 1}, nil)
	a2, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 2}, nil)

	fd.signaled = true
	QueueAsync(q, a1)
	QueueAsync(q, a2)

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	if q.asyncs[0] != a1 || q.asyncs[1] != a2 {
		t.Fatalf("queue order is not FIFO: got %v, want [a1 a2]", q.asyncs)
	}
	if a1.fd != nil || a2.fd != nil {
		t.Fatalf("queued asyncs must have their direct fd reference cleared")
	}
	if fd.signaled {
		t.Fatalf("fd should have been cleared to unsignaled by QueueAsync")
	}
}

func TestFindPendingAsync_SkipsTerminated(t *testing.T) {
	fd := newFakeFD("obj")
	thread := newFakeThread(1)
	p := NewProcess(1)
	q := NewQueue(fd)

	a1, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 1}, nil)
	a2, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 2}, nil)
	QueueAsync(q, a1)
	QueueAsync(q, a2)

	Terminate(a1, status.Cancelled)

	got := FindPendingAsync(q)
	if got != a2 {
		t.Fatalf("FindPendingAsync returned %v, want the second (non-terminated) async", got)
	}
	got.Release()
}

func TestWaiting_FalseOnEmptyOrTerminatedHead(t *testing.T) {
	fd := newFakeFD("obj")
	thread := newFakeThread(1)
	p := NewProcess(1)
	q := NewQueue(fd)

	if Waiting(q) {
		t.Fatalf("Waiting on empty queue should be false")
	}

	a, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 1}, nil)
	QueueAsync(q, a)
	if !Waiting(q) {
		t.Fatalf("Waiting should be true with one non-terminated entry")
	}

	Terminate(a, status.Cancelled)
	if Waiting(q) {
		t.Fatalf("Waiting should be false once the head is terminated")
	}
}

func TestFreeQueue_TerminatesEveryEntryAndDrainsCompletion(t *testing.T) {
	fd := newFakeFD("obj")
	port := &fakeCompletionPort{}
	fd.hasCompletion = true
	fd.completionPort = port
	fd.completionKey = 99

	thread := newFakeThread(1)
	p := NewProcess(1)
	q := NewQueue(fd)

	a1, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 1, ApcContext: 1}, nil)
	a2, _ := CreateAsync(context.Background(), p, fd, thread, Data{User: 2, ApcContext: 2}, nil)
	QueueAsync(q, a1)
	QueueAsync(q, a2)

	FreeQueue(q)

	if !a1.terminated || !a2.terminated {
		t.Fatalf("FreeQueue must terminate every queued async")
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be empty after FreeQueue")
	}
}
