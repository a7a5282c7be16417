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
	"time"

	"golang.org/x/net/context"

	"github.com/asyncio-project/asyncio/status"
)

// TestMonitorProcess_MarksExitedWithoutTearingDown models the concurrency
// contract MonitorProcess must respect: it runs on its own goroutine, so it
// may only signal that pid is gone, never call Terminate on any of the
// process's asyncs itself.
func TestMonitorProcess_MarksExitedWithoutTearingDown(t *testing.T) {
	old := pollPeriod
	pollPeriod = time.Millisecond
	defer func() { pollPeriod = old }()

	// A PID essentially guaranteed not to exist: kill(2) reports ESRCH for it
	// immediately, the same outcome as if the process had just exited.
	const bogusPID = 1<<31 - 2

	p := NewProcess(bogusPID)
	fd := newFakeFD("obj")
	thread := newFakeThread(1)
	a, st := CreateAsync(context.Background(), p, fd, thread, Data{User: 1}, nil)
	if st != status.Success {
		t.Fatalf("CreateAsync status = %v", st)
	}

	done := make(chan struct{})
	go func() {
		MonitorProcess(p)
		close(done)
	}()

	select {
	case <-p.Exited():
	case <-time.After(time.Second):
		t.Fatalf("Exited() never fired")
	}
	<-done

	if a.terminated {
		t.Fatalf("MonitorProcess must not terminate asyncs itself")
	}

	if n := p.TearDown(status.HandlesClosed); n != 1 {
		t.Fatalf("TearDown terminated = %d, want 1", n)
	}
}

// TestMonitorProcess_ReturnsEarlyForPIDZero exercises the nothing-to-watch
// shortcut: Exited must never fire for a Process with no real OS process.
func TestMonitorProcess_ReturnsEarlyForPIDZero(t *testing.T) {
	p := NewProcess(0)
	MonitorProcess(p)

	select {
	case <-p.Exited():
		t.Fatalf("Exited() fired for PID 0")
	default:
	}
}
