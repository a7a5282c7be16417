// Copyright 2015 Google Inc. All Rights Reserved.

package asyncio

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/net/context"
)

func TestServe_JoinReturnsTheServeLoopsError(t *testing.T) {
	want := errors.New("boom")
	s := Serve(func(d *Dispatcher) error {
		if d == nil {
			t.Fatalf("serve was not handed a Dispatcher")
		}
		return want
	}, nil)

	got := s.Join(context.Background())
	if got != want {
		t.Fatalf("Join() = %v, want %v", got, want)
	}
}

func TestServe_JoinRespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	s := Serve(func(d *Dispatcher) error {
		<-block
		return nil
	}, nil)
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := s.Join(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Join() = %v, want context.DeadlineExceeded", err)
	}
}

func TestServe_DispatcherIsReachableBeforeJoin(t *testing.T) {
	started := make(chan struct{})
	s := Serve(func(d *Dispatcher) error {
		close(started)
		return nil
	}, nil)

	<-started
	if s.Dispatcher() == nil {
		t.Fatalf("Dispatcher() returned nil")
	}
}
