// Copyright 2015 Google Inc. All Rights Reserved.

package asyncio

import "github.com/asyncio-project/asyncio/async"

// CancelAsyncRequest is the client-visible cancel_async request: cancel
// every outstanding async on a given fd-backed object, optionally narrowed
// to one thread and/or one iosb cookie. Obj is the fd's User() value,
// already resolved by the caller from whatever handle the client passed —
// this package never looks up handles itself.
type CancelAsyncRequest struct {
	Obj           any
	Thread        async.Thread
	IOSBCookie    uintptr
	HasIOSBCookie bool
}

// CancelAsync implements the cancel_async request handler: it cancels every
// async in p matching req and reports how many it cancelled. Matching an
// iosb cookie but finding nothing is reported as ErrNotFound, mirroring
// cancel_async's `if (!count && req->iosb) set_error(STATUS_NOT_FOUND)`.
func CancelAsync(p *async.Process, req CancelAsyncRequest) (count int, err error) {
	count = p.CancelAsync(async.CancelFilter{
		Obj:           req.Obj,
		Thread:        req.Thread,
		IOSBCookie:    req.IOSBCookie,
		HasIOSBCookie: req.HasIOSBCookie,
	})
	if count == 0 && req.HasIOSBCookie {
		err = ErrNotFound
	}
	return
}

// GetAsyncResult implements the get_async_result request handler: it finds
// the async registered under the client cookie user, copies whatever
// out-data its iosb carries into reply (bounded by reply's own
// ReplyMaxSize), and returns the iosb's byte count and final status.
//
// Returns ErrInvalidParameter if no async is registered under user.
func GetAsyncResult(p *async.Process, user uintptr, reply async.RequestPayload) (result uint32, err error) {
	a := p.FindByUser(user)
	if a == nil || a.IOSB() == nil {
		return 0, ErrInvalidParameter
	}

	b := a.IOSB()
	if data, size, ok := b.DetachOutData(); ok {
		if limit := reply.ReplyMaxSize(); uint32(len(data)) > limit {
			data = data[:limit]
			size = limit
		}
		if size > 0 {
			reply.SetReplyData(data)
		}
	}

	result = b.Result()
	if st := b.Status(); st.IsError() {
		err = st
	}
	return
}
