// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on accessport.go's opened_ap
// bitmap-gated set; here the gate is bRequest legality per DFU state
// instead of an already-opened access port (§4.E's request-filter table).

package dfu

import "github.com/boljen/go-bitmap"

// requestMask holds one bitmap.Bitmap per State, each bit indexed by
// Request, built by newRequestMask for each Core from §4.E's table.
type requestMask struct {
	allowed [stateCount]bitmap.Bitmap
}

func newRequestMask() *requestMask {
	m := &requestMask{}
	for s := range m.allowed {
		m.allowed[s] = bitmap.New(requestCount)
	}

	allow := func(s State, reqs ...Request) {
		for _, r := range reqs {
			m.allowed[s].Set(int(r), true)
		}
	}

	allow(StateAppIdle, ReqDetach, ReqGetStatus, ReqGetState)
	allow(StateAppDetach, ReqGetStatus, ReqGetState)
	allow(StateDfuIdle, ReqDetach, ReqDnload, ReqUpload, ReqGetStatus, ReqGetState, ReqAbort)
	allow(StateDfuDnloadSync, ReqDnload, ReqGetStatus, ReqGetState, ReqAbort)
	// StateDfuDnbusy: no requests are allowed.
	allow(StateDfuDnloadIdle, ReqDnload, ReqGetStatus, ReqGetState, ReqAbort)
	allow(StateDfuManifestSync, ReqGetStatus, ReqGetState, ReqAbort)
	// StateDfuManifest, StateDfuManifestWaitReset: no requests are allowed.
	allow(StateDfuUploadIdle, ReqUpload, ReqGetStatus, ReqGetState, ReqAbort)
	allow(StateDfuError, ReqGetStatus, ReqClrStatus, ReqGetState)

	return m
}

// permits reports whether req is allowed in state, per §4.E's table.
func (m *requestMask) permits(state State, req Request) bool {
	if int(state) >= len(m.allowed) || int(req) >= requestCount {
		return false
	}
	return m.allowed[state].Get(int(req))
}
