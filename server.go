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
	"log"

	"golang.org/x/net/context"
)

// Config is the optional configuration accepted by Serve.
type Config struct {
	// DebugLogger and ErrorLogger, if set, receive the Dispatcher's debug
	// and error log lines respectively. Both may be nil.
	DebugLogger *log.Logger
	ErrorLogger *log.Logger
}

// Server represents one running instance of the async I/O core: a
// Dispatcher plus the background goroutine driving whatever transport the
// caller supplied to Serve.
//
// Grounded on MountedFileSystem: a join channel closed when the serving
// goroutine exits, and a Join method racing it against ctx.Done().
type Server struct {
	dispatcher *Dispatcher

	// The result to return from Join. Not valid until the channel is closed.
	joinStatus          error
	joinStatusAvailable chan struct{}
}

// Dispatcher returns the registry this server's transport loop should use
// to create and look up per-client async.Process values.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Join blocks until the serving goroutine started by Serve has returned.
// The return value is whatever that goroutine returned, or ctx.Err() if ctx
// is done first. May be called multiple times.
func (s *Server) Join(ctx context.Context) error {
	select {
	case <-s.joinStatusAvailable:
		return s.joinStatus
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve starts a Dispatcher and runs serve in the background, passing it
// the new Dispatcher to drive. serve should block, reading requests from
// whatever transport the caller is wiring up (a listening socket, an
// in-process channel, a test harness) and calling into the Dispatcher's
// processes and the CancelAsync/GetAsyncResult handlers, returning when the
// transport is done.
//
// config may be nil, in which case debug and error logging are both
// disabled.
func Serve(serve func(*Dispatcher) error, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}

	s := &Server{
		dispatcher:          NewDispatcher(config.DebugLogger, config.ErrorLogger),
		joinStatusAvailable: make(chan struct{}),
	}

	logger := getLogger()
	logger.Println("Starting serve loop.")

	go func() {
		s.joinStatus = serve(s.dispatcher)
		logger.Printf("Serve loop returned: %v", s.joinStatus)
		close(s.joinStatusAvailable)
	}()

	return s
}
