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

// Package asyncio implements the server-side bookkeeping behind an
// asynchronous I/O request: an object a client handle can wait on, whose
// result shows up either synchronously, through an APC queued onto the
// issuing thread, or through an I/O completion port, plus the cancel_async
// and get_async_result request handlers that operate on it.
//
// The primary elements of interest are:
//
//  *  async.Async and async.Queue, the state machine and FIFO that track one
//     pending operation against a file-like object from creation through
//     completion or cancellation.
//
//  *  async.Process, the per-client-process registry that cancel_async and
//     get_async_result scan, and async.MonitorProcess, which watches for the
//     owning OS process to exit and wakes up Process.Exited so the caller's
//     own dispatch goroutine can tear it down.
//
//  *  CancelAsync and GetAsyncResult, the two request handlers built on top
//     of async.Process.
//
//  *  Dispatcher, which owns one async.Process per connected client, and
//     Serve, which starts a Dispatcher and runs a caller-supplied transport
//     loop against it.
//
// This package does not itself define a wire protocol or transport; Serve's
// caller supplies both by way of the RequestPayload values it hands to
// CreateRequestAsync.
package asyncio
