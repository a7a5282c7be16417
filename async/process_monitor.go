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
	"log"
	"time"

	"golang.org/x/sys/unix"
)

// pollPeriod is how often MonitorProcess polls for liveness. Declared as a
// var, not a const, so tests can shrink it.
var pollPeriod = 50 * time.Millisecond

// MonitorProcess polls pid's liveness with a zero-signal kill(2) and, once
// the process is gone, marks p exited. It blocks until that happens, so
// callers run it in its own goroutine — a client-process-level analogue of
// fuseops.reportWhenPIDGone, which this is grounded on line for line. Unlike
// reportWhenPIDGone, which only logs, MonitorProcess's discovery ultimately
// drives a real teardown — but it never performs that teardown itself:
// Async mutation is not safe from this goroutine (see the package doc
// comment), so MonitorProcess only closes p.Exited() and returns, leaving
// the actual Process.TearDown call to whatever goroutine already
// serializes p's asyncs.
//
// MonitorProcess returns early, without marking anything exited, if p was
// created with PID 0 (nothing to watch).
func MonitorProcess(p *Process) {
	pid := p.PID()
	if pid == 0 {
		return
	}

	for {
		// The man page for kill(2) says that if the signal is zero, then "no
		// signal is sent, but error checking is still performed; this can be
		// used to check for the existence of a process ID".
		err := unix.Kill(pid, 0)

		// ESRCH means the process is gone.
		if err == unix.ESRCH {
			break
		}

		// If we receive EPERM, we're not going to be able to do what we want.
		// We don't really have any choice but to print info and leak.
		if err == unix.EPERM {
			log.Printf("Failed to kill(2) PID %v; no permissions. Leaking monitor.", pid)
			return
		}

		if err != nil {
			panic(fmt.Errorf("kill(%v, 0): %v", pid, err))
		}

		time.Sleep(pollPeriod)
	}

	p.markExited()
}
