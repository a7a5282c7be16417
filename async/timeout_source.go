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
	"time"

	"github.com/jacobsa/timeutil"
)

// RealTimeoutSource is the production TimeoutSource: it arms an actual
// time.Timer for each call. It holds an injected timeutil.Clock, the way
// hellofs and dynamicfs hold one, and reads it on each call, but the value
// read is not kept: no deadline is recorded or exposed, and the timer fires
// after d of real time whatever the injected clock says.
type RealTimeoutSource struct {
	Clock timeutil.Clock
}

// NewRealTimeoutSource creates a RealTimeoutSource backed by clock.
func NewRealTimeoutSource(clock timeutil.Clock) *RealTimeoutSource {
	return &RealTimeoutSource{Clock: clock}
}

// realTimer adapts *time.Timer to the Timer interface.
type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() { r.t.Stop() }

// AddTimeoutUser arms a timer that calls fire after d, through
// time.AfterFunc, since timeutil.Clock has no scheduling primitive of its
// own. s.Clock.Now() is read but its result is discarded.
func (s *RealTimeoutSource) AddTimeoutUser(d time.Duration, fire func()) Timer {
	_ = s.Clock.Now()
	return realTimer{t: time.AfterFunc(d, fire)}
}
