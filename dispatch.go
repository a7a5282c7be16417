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

package asyncio

import (
	"fmt"
	"log"
	"path"
	"runtime"
	"sync"

	"github.com/asyncio-project/asyncio/async"
	"github.com/asyncio-project/asyncio/status"
)

// Dispatcher owns the per-client-process registries that back the
// cancel_async and get_async_result request handlers: one async.Process per
// client, created on first use and torn down by Forget when the client
// disconnects. Forget does not stop that client's liveness-monitoring
// goroutine, which keeps polling until the OS process is gone.
//
// Grounded on Connection's cancelFuncs bookkeeping (recordCancelFunc /
// beginOp / finishOp), generalized from "one cancel func per fuse request
// ID" to "one async.Process per client process".
type Dispatcher struct {
	debugLogger *log.Logger
	errorLogger *log.Logger

	// GUARDED_BY(mu)
	mu        sync.Mutex
	processes map[int]*async.Process
}

// NewDispatcher creates a Dispatcher with no client processes registered
// yet. The loggers may be nil, in which case the corresponding log level is
// silently dropped.
func NewDispatcher(debugLogger, errorLogger *log.Logger) *Dispatcher {
	return &Dispatcher{
		debugLogger: debugLogger,
		errorLogger: errorLogger,
		processes:   make(map[int]*async.Process),
	}
}

// Process returns the registry for the client process identified by pid,
// creating it (and, for pid != 0, starting a liveness-monitoring goroutine)
// on first use.
//
// LOCKS_EXCLUDED(d.mu)
func (d *Dispatcher) Process(pid int) *async.Process {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.processes[pid]
	if ok {
		return p
	}

	p = async.NewProcess(pid)
	d.processes[pid] = p
	if pid != 0 {
		d.debugLog(pid, 1, "Registering new client process.")
		go async.MonitorProcess(p)
	}
	return p
}

// Exited returns the channel that closes once MonitorProcess observes pid's
// OS process disappear, or nil if pid is not currently registered. The
// goroutine that already serializes pid's asyncs — conventionally the
// transport loop reading that client's requests — must select on this
// channel alongside its own request source and call Forget(pid) when it
// fires; that is what actually runs TearDown, and it must run there, not on
// MonitorProcess's own polling goroutine.
//
// LOCKS_EXCLUDED(d.mu)
func (d *Dispatcher) Exited(pid int) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.processes[pid]
	if !ok {
		return nil
	}
	return p.Exited()
}

// Forget tears down and removes the registry for pid, if any. Call this
// once a client process's connection has definitively closed, or in
// response to Exited(pid) firing — either way, call it from the same
// goroutine that drives that pid's asyncs, since it runs TearDown directly.
//
// LOCKS_EXCLUDED(d.mu)
func (d *Dispatcher) Forget(pid int) {
	d.mu.Lock()
	p, ok := d.processes[pid]
	delete(d.processes, pid)
	d.mu.Unlock()

	if ok {
		d.debugLog(pid, 1, "Tearing down client process.")
		if n := p.TearDown(status.HandlesClosed); n > 0 {
			d.errorLog(pid, "%d outstanding async(s) cancelled by process teardown", n)
		}
	}
}

// debugLog logs a debug message tagged with the client pid, the way
// Connection.debugLog tags messages with the fuse request ID. calldepth is
// the depth to use when recovering file:line info with runtime.Caller.
func (d *Dispatcher) debugLog(pid int, calldepth int, format string, v ...interface{}) {
	if d.debugLogger == nil {
		return
	}

	_, file, line, ok := runtime.Caller(calldepth)
	if !ok {
		file = "???"
	}

	fileLine := fmt.Sprintf("%v:%v", path.Base(file), line)
	msg := fmt.Sprintf("PID %d %24s] %v", pid, fileLine, fmt.Sprintf(format, v...))
	d.debugLogger.Println(msg)
}

// errorLog logs an error for the client process pid, the way Connection's
// Reply logs op failures to its errorLogger.
func (d *Dispatcher) errorLog(pid int, format string, v ...interface{}) {
	if d.errorLogger == nil {
		return
	}
	d.errorLogger.Printf("PID %d] %v", pid, fmt.Sprintf(format, v...))
}
