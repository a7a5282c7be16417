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
	"golang.org/x/net/context"

	"github.com/asyncio-project/asyncio/iosb"
	"github.com/asyncio-project/asyncio/status"
)

// RequestPayload is the in-flight client request a request-based async is
// created from and the reply it eventually writes into. It covers the
// get_req_data/get_req_data_size/get_reply_max_size/set_reply_data_ptr
// primitives of the original server as three methods instead of four,
// folding the data-size query into ReqData's own length.
type RequestPayload interface {
	// ReqData returns the request's input buffer, owned by the caller —
	// CreateRequestAsync copies it.
	ReqData() []byte

	// ReplyMaxSize returns the maximum size the client is willing to
	// receive back.
	ReplyMaxSize() uint32

	// SetReplyData installs data as the reply payload, mirroring
	// set_reply_data_ptr. Used by GetAsyncResult to hand back an iosb's
	// out-data.
	SetReplyData(data []byte)
}

// CreateRequestAsync creates a request-based async: it builds a fresh iosb
// from payload, creates the underlying async, and pre-allocates its wait
// handle, mirroring create_request_async. The returned async must be
// passed to Handoff before the request handler returns.
func CreateRequestAsync(
	ctx context.Context,
	p *Process,
	fd FD,
	thread Thread,
	data Data,
	compFlags uint32,
	payload RequestPayload,
	handles HandleTable,
) (*Async, status.Status) {
	b, err := iosb.New(payload.ReqData(), payload.ReplyMaxSize())
	if err != nil {
		return nil, status.NoMemory
	}

	a, st := CreateAsync(ctx, p, fd, thread, data, b)
	b.Release() // CreateAsync took its own reference.
	if st.IsError() {
		return nil, st
	}

	h, err := handles.Alloc(a, SYNCHRONIZE)
	if err != nil {
		a.Release()
		return nil, status.NoMemory
	}

	a.waitHandle = h
	a.handles = handles
	a.pending = false
	a.directResult = true
	a.compFlags = compFlags

	a.checkInvariants()
	return a, status.Success
}
