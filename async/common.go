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
	"github.com/jacobsa/reqtrace"
	"golang.org/x/net/context"
)

// lifecycleTrace ties a reqtrace span to the full lifetime of one async, from
// CreateAsync through to the moment its last reference is dropped, the way
// fuseops.commonOp ties a span to one in-flight op. Narrower than commonOp —
// there is no per-op Logf/respond here, just the span itself; the async
// package does no logging of its own.
type lifecycleTrace struct {
	report reqtrace.ReportFunc
}

func startLifecycleTrace(ctx context.Context, label string) (context.Context, lifecycleTrace) {
	out, report := reqtrace.StartSpan(ctx, label)
	return out, lifecycleTrace{report: report}
}

// finish closes the span, attributing err (nil for a clean completion) to
// it. Safe to call at most once; Release guarantees that by calling
// destroy() only when the last reference is dropped.
func (t lifecycleTrace) finish(err error) {
	if t.report != nil {
		t.report(err)
	}
}
