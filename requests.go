// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the board's DFU protocol
// machine; per-request semantics follow §4.E exactly. The FunctionDriver
// contract (hooks.go) delivers a control request's OUT data already
// collected by the USB stack, so the "data-phase done callback" §9
// describes collapses to code that runs inline inside dispatchClass
// rather than a separately scheduled callback.
package dfu

// dispatchClass implements the per-bRequest semantics of §4.E for a
// request already known to be allowed in the current state.
func (c *Core) dispatchClass(req Request, setupWord uint16, data []byte) ([]byte, Disposition, error) {
	switch req {
	case ReqDetach:
		return c.doDetach()
	case ReqDnload:
		return c.doDnload(data)
	case ReqUpload:
		return c.doUpload(setupWord) // setupWord carries wLength for UPLOAD, see Dispatch
	case ReqGetStatus:
		return c.doGetStatus()
	case ReqClrStatus:
		return c.doClrStatus()
	case ReqGetState:
		return []byte{byte(c.state)}, DispositionSuccess, nil
	case ReqAbort:
		return c.doAbort()
	default:
		prevState := c.state
		c.state = StateDfuError
		c.status = StatusErrUnknown
		return nil, DispositionError, errDisallowed(req, prevState)
	}
}

// doDetach schedules the reboot hook (§4.E "DETACH"). Both the standard
// appIDLE detach and the nonstandard dfuIDLE detach the table allows
// reboot immediately; there is no separate detach timeout to model since
// the device never leaves DFU mode (§1 Non-goals).
func (c *Core) doDetach() ([]byte, Disposition, error) {
	c.boot.Reboot()
	return nil, DispositionSuccess, nil
}

// doDnload implements both halves of §4.E's DNLOAD: wLength > 0 fills a
// buffer slot and advances toward dfuDNLOAD_SYNC; wLength == 0 is the
// host's end-of-transfer signal into dfuMANIFEST_SYNC. A DNLOAD arriving
// while both slots are full is not committed: it is rejected with
// ErrorBusy and the state is left unchanged.
func (c *Core) doDnload(data []byte) ([]byte, Disposition, error) {
	if len(data) == 0 {
		c.state = StateDfuManifestSync
		return nil, DispositionSuccess, nil
	}

	if c.addrRecv+uint32(len(data)) > c.addrEnd {
		c.state = StateDfuError
		c.status = StatusErrUnknown
		return nil, DispositionError, errBounds(c.addrRecv+uint32(len(data)), c.addrEnd)
	}

	if !c.buf.HasRoom() {
		return nil, DispositionError, NewDfuError("double buffer full, dnload not committed", ErrorBusy)
	}

	slot := c.buf.Reserve()
	n := copy(slot[:], data)
	if n < bufferSize {
		memset(slot[n:], bufferSize-n, 0xFF)
	}

	c.buf.Commit()
	c.addrRecv += uint32(len(data))
	c.state = StateDfuDnloadSync

	return nil, DispositionSuccess, nil
}

// doUpload implements §4.E's UPLOAD: a synchronous flash read, clamped to
// the remaining zone, advancing addr_read.
func (c *Core) doUpload(wLength uint16) ([]byte, Disposition, error) {
	remaining := c.addrEnd - c.addrRead
	n := uint32(wLength)
	if n > remaining {
		n = remaining
	}

	dst := make([]byte, n)
	if err := c.flash.Read(dst, c.addrRead); err != nil {
		return nil, DispositionError, err
	}

	c.addrRead += n
	c.state = StateDfuUploadIdle

	return dst, DispositionSuccess, nil
}

// doGetStatus implements §4.E's GETSTATUS, including the dfuDNLOAD_SYNC
// busy-vs-idle branch and the dfuMANIFEST_SYNC synchronous-drain shortcut.
func (c *Core) doGetStatus() ([]byte, Disposition, error) {
	reported := c.state

	switch c.state {
	case StateDfuDnloadSync:
		if c.buf.Used() < 2 {
			c.state = StateDfuDnloadIdle
			reported = c.state
		} else {
			reported = StateDfuDnbusy // no transition: busy is reported, not entered
		}
	case StateDfuManifestSync:
		if err := c.wr.Drain(); err != nil {
			return nil, DispositionError, err
		}
		c.state = StateDfuIdle
		reported = c.state
	}

	buf := NewBuffer(statusResponseLength)
	buf.WriteByte(byte(c.status))
	buf.WriteUint24LE(pollTimeoutMs)
	buf.WriteByte(byte(reported))
	buf.WriteByte(0) // iString

	return buf.Bytes(), DispositionSuccess, nil
}

// doClrStatus implements §4.E's CLRSTATUS: the only recovery from
// dfuERROR, restoring (dfuIDLE, OK) without rewinding any cursor (§7).
func (c *Core) doClrStatus() ([]byte, Disposition, error) {
	c.state = StateDfuIdle
	c.status = StatusOK
	return nil, DispositionSuccess, nil
}

// doAbort implements §4.E's ABORT: state resets to dfuIDLE, addr_read is
// left untouched (only SET_INTERFACE resets cursors, §8 scenario 5).
func (c *Core) doAbort() ([]byte, Disposition, error) {
	c.state = StateDfuIdle
	return nil, DispositionSuccess, nil
}
