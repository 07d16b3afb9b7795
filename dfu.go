// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the board's DFU protocol
// machine; see §3, §4.E for the state diagram and request semantics.

package dfu

// State is a value from the closed DFU 1.1 state set (§3).
type State uint8

const (
	StateAppIdle State = iota
	StateAppDetach
	StateDfuIdle
	StateDfuDnloadSync
	StateDfuDnbusy
	StateDfuDnloadIdle
	StateDfuManifestSync
	StateDfuManifest
	StateDfuManifestWaitReset
	StateDfuUploadIdle
	StateDfuError

	stateCount
)

func (s State) String() string {
	switch s {
	case StateAppIdle:
		return "appIDLE"
	case StateAppDetach:
		return "appDETACH"
	case StateDfuIdle:
		return "dfuIDLE"
	case StateDfuDnloadSync:
		return "dfuDNLOAD_SYNC"
	case StateDfuDnbusy:
		return "dfuDNBUSY"
	case StateDfuDnloadIdle:
		return "dfuDNLOAD_IDLE"
	case StateDfuManifestSync:
		return "dfuMANIFEST_SYNC"
	case StateDfuManifest:
		return "dfuMANIFEST"
	case StateDfuManifestWaitReset:
		return "dfuMANIFEST_WAIT_RESET"
	case StateDfuUploadIdle:
		return "dfuUPLOAD_IDLE"
	case StateDfuError:
		return "dfuERROR"
	default:
		return "UNKNOWN_STATE"
	}
}

// Status is a value from the closed DFU status set (§3); only the two
// values this core ever produces are named.
type Status uint8

const (
	StatusOK         Status = 0x00
	StatusErrUnknown Status = 0x0e
)

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	return "errUNKNOWN"
}

// Disposition is the USB stack's tri-valued view of how a control request
// was handled (§9 "USB stack coupling").
type Disposition uint8

const (
	DispositionContinue Disposition = iota // not mine, USB stack should keep looking
	DispositionSuccess
	DispositionError
)

// Core is the single process-wide aggregate: the DFU machine, the double
// buffer and the flash writer, wired together (§3 "Lifecycle"). It is
// owned by reference by whatever drives it (§9's first design note).
type Core struct {
	state  State
	status Status

	intf uint8
	alt  uint8

	zones *zoneTable
	flash *Flash
	buf   *DoubleBuffer
	wr    *Writer

	addrRecv uint32
	addrRead uint32
	addrEnd  uint32

	boot   RebootHook
	tick   TickSource
	vendor VendorHandler

	mask *requestMask
}

// SetInterface implements §4.E's set-interface behavior: reset to dfuIDLE,
// reposition every cursor at the zone's start, select the zone's chip.
func (c *Core) SetInterface(alt uint8) error {
	zone, err := c.zones.lookup(alt)
	if err != nil {
		return err
	}

	c.alt = alt
	c.state = StateDfuIdle
	c.status = StatusOK

	c.addrRecv = zone.Start
	c.addrRead = zone.Start
	c.addrEnd = zone.End

	c.flash.ChipSelect(zone.Chip)
	c.wr.Reset(zone.Start)

	return nil
}

// GetInterface reports the alternate setting last selected.
func (c *Core) GetInterface() uint8 {
	return c.alt
}

// BusReset implements §4.E's bus-reset handling: any state other than
// appDETACH reboots.
func (c *Core) BusReset() {
	if c.state != StateAppDetach {
		c.boot.Reboot()
	}
}

// Tick pumps the flash writer once, the main-loop half of the cooperative
// model (§5); the GETSTATUS manifest shortcut instead calls Drain directly.
func (c *Core) Tick() error {
	return c.wr.Tick()
}

// Dispatch implements the request filter and per-request semantics of
// §4.E. A request whose wIndex differs from the configured interface
// number is passed through as DispositionContinue, matching "every control
// request is dispatched only if wIndex == intf"; requestType selects
// between the configured VendorHandler and the class requests. setupWord carries
// the setup packet's wValue field for every request except UPLOAD, where
// this core has no use for the wBlockNum field DFU 1.1 defines there and
// instead repurposes the slot for wLength, the byte count §4.E's UPLOAD
// handler clamps against addr_end - addr_read.
func (c *Core) Dispatch(requestType uint8, req Request, setupWord, wIndex uint16, data []byte) ([]byte, Disposition, error) {
	if wIndex != uint16(c.intf) {
		return nil, DispositionContinue, nil
	}

	if c.tick != nil {
		logger.Tracef("dispatch %s at t=%dms", req, c.tick.Milliseconds())
	}

	if requestType == requestTypeVendor {
		return c.dispatchVendor(req, setupWord, wIndex, data)
	}

	if requestType != requestTypeClass {
		return nil, DispositionContinue, nil
	}

	if !c.mask.permits(c.state, req) {
		prevState := c.state
		c.state = StateDfuError
		c.status = StatusErrUnknown
		return nil, DispositionError, errDisallowed(req, prevState)
	}

	return c.dispatchClass(req, setupWord, data)
}

func (c *Core) dispatchVendor(req Request, wValue, wIndex uint16, data []byte) ([]byte, Disposition, error) {
	if c.vendor == nil {
		return nil, DispositionError, NewDfuError("no vendor handler configured", ErrorVendor)
	}

	scratch := make([]byte, 0, vendorScratchLen)
	scratch = append(scratch, c.buf.data[0][:]...)
	scratch = append(scratch, c.buf.data[1][:]...)

	resp, err := c.vendor.VendorRequest(uint8(req), wValue, wIndex, scratch)
	if err != nil {
		return nil, DispositionError, err
	}
	return resp, DispositionSuccess, nil
}
