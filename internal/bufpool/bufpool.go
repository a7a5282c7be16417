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

// Package bufpool provides a pool of reusable byte buffers for the iosb
// package, so that a steady stream of requests does not allocate a fresh
// input and output buffer per IOSB.
package bufpool

import "sync"

// Pool hands out byte slices of at least the requested size and accepts them
// back for reuse. The zero value is ready to use.
type Pool struct {
	pool sync.Pool
}

// Get returns a buffer with length n, either recycled or freshly allocated.
func (p *Pool) Get(n int) []byte {
	v := p.pool.Get()
	if v == nil {
		return make([]byte, n)
	}

	b := v.([]byte)
	if cap(b) < n {
		return make([]byte, n)
	}

	return b[:n]
}

// Put returns a buffer to the pool for future reuse. The caller must not
// touch b after calling Put.
func (p *Pool) Put(b []byte) {
	if b == nil {
		return
	}

	p.pool.Put(b) //nolint:staticcheck // intentionally storing a slice header
}
