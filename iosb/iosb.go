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

// Package iosb implements the I/O status block shared between an async and
// the request/reply marshalling layer: a completion status, a byte count,
// and the owning input/output buffers.
package iosb

import (
	"sync/atomic"

	"github.com/asyncio-project/asyncio/internal/bufpool"
	"github.com/asyncio-project/asyncio/status"
)

var pool bufpool.Pool

// IOSB is the I/O status block described in §4.1. It is reference counted;
// the last Release frees both buffers and returns them to the pool.
type IOSB struct {
	refs int32

	st     status.Status
	result uint32

	inSize  uint32
	inData  []byte
	outSize uint32
	outData []byte
}

// New copies inData into an owned buffer and records outSize as the
// maximum output size; no output buffer is allocated.
func New(inData []byte, outSize uint32) (*IOSB, error) {
	b := &IOSB{
		refs:    1,
		st:      status.Pending,
		outSize: outSize,
	}

	if n := len(inData); n > 0 {
		owned := pool.Get(n)
		copy(owned, inData)
		b.inSize = uint32(n)
		b.inData = owned
	}

	return b, nil
}

// Retain returns a new strong reference to b, mirroring async_get_iosb.
func (b *IOSB) Retain() *IOSB {
	atomic.AddInt32(&b.refs, 1)
	return b
}

// Release drops a strong reference, freeing both buffers back to the pool
// when the last one is dropped.
func (b *IOSB) Release() {
	if atomic.AddInt32(&b.refs, -1) != 0 {
		return
	}

	if b.inData != nil {
		pool.Put(b.inData)
		b.inData = nil
	}
	if b.outData != nil {
		pool.Put(b.outData)
		b.outData = nil
	}
}

// Status returns the current completion status.
func (b *IOSB) Status() status.Status { return b.st }

// Result returns the completion byte count / info word.
func (b *IOSB) Result() uint32 { return b.result }

// InData returns the owned input buffer, or nil if in_size was 0.
func (b *IOSB) InData() []byte { return b.inData }

// OutSize returns the maximum reply size the caller asked for, or, once
// Complete has installed output data, the length of that data.
func (b *IOSB) OutSize() uint32 { return b.outSize }

// OutData returns the owned output buffer, or nil if none has been set or
// it has already been detached.
func (b *IOSB) OutData() []byte { return b.outData }

// Complete installs a terminal status, result, and (optional) output buffer.
// It is a no-op, returning false, if the iosb is already non-Pending — the
// caller is expected to free outData itself in that case, mirroring
// async_request_complete's race-with-cancellation handling.
func (b *IOSB) Complete(st status.Status, result uint32, outData []byte) bool {
	if b.st != status.Pending {
		return false
	}

	b.st = st
	b.result = result
	b.outData = outData
	b.outSize = uint32(len(outData))
	return true
}

// SetStatus installs a terminal status if one is not already set. Used by
// Terminate, which only ever writes a status, never output data.
func (b *IOSB) SetStatus(st status.Status) {
	if b.st == status.Pending {
		b.st = st
	}
}

// DetachOutData transfers ownership of the output buffer to the caller
// (typically the reply path), nulling the field on the IOSB exactly as
// set_reply_data_ptr does in the original server.
func (b *IOSB) DetachOutData() (data []byte, size uint32, ok bool) {
	if b.outData == nil {
		return nil, 0, false
	}
	data, size = b.outData, b.outSize
	b.outData = nil
	return data, size, true
}

// CopyAndComplete copies src into a pooled buffer before installing it,
// mirroring async_request_complete_alloc. ok is false if the iosb already
// had a terminal status; the copy made for src, if any, has then already
// been returned to the pool here, so the caller must free nothing extra.
func CopyAndComplete(b *IOSB, st status.Status, result uint32, src []byte) (ok bool) {
	var owned []byte
	if len(src) > 0 {
		owned = pool.Get(len(src))
		copy(owned, src)
	}
	if !b.Complete(st, result, owned) {
		if owned != nil {
			pool.Put(owned)
		}
		return false
	}
	return true
}
