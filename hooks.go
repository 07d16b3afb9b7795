// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on usb.go's
// usb_register_function_driver-shaped coupling to the board's USB stack;
// the core never talks to a USB controller directly, it is driven by one.

package dfu

// FunctionDriver is the set of callbacks a USB device stack invokes on the
// core, mirroring usb_register_function_driver's bus_reset/state_change/
// control_request/set_interface/get_interface table (§1, §6). A host
// application wires its own USB stack to a Core by implementing Core's
// Dispatch-facing methods and driving them from these events; FunctionDriver
// documents that contract so a caller and a Core agree on it without the
// core importing any USB transport package itself.
type FunctionDriver interface {
	// BusReset is invoked when the USB stack observes a bus reset. A Core in
	// any state other than appDETACH treats this as "unexpected", per §7.
	BusReset()

	// ControlRequest delivers one class request's bRequest/wValue/wLength
	// together with any OUT data payload already collected by the USB
	// stack; the driver's transfer-completion behavior for DNLOAD/UPLOAD is
	// modeled separately, see requests.go.
	ControlRequest(req Request, wValue uint16, data []byte) ([]byte, error)

	// SetInterface is invoked when the host selects an alternate setting on
	// the DFU interface (§4.E).
	SetInterface(alt uint8) error

	// GetInterface reports the alternate setting last selected.
	GetInterface() uint8
}

// RebootHook lets the writer (on retry exhaustion), DETACH and bus-reset
// handling (§4.D, §4.E) trigger a device reset without the core depending on any particular
// reset mechanism (watchdog, self-programmed reset vector, etc.).
type RebootHook interface {
	Reboot()
}

// TickSource is a monotonic millisecond clock the core consults only for
// debug logging (§6); bwPollTimeout is a fixed constant. It is never used to
// gate protocol correctness, so a caller may supply a coarse or even
// constant source in tests.
type TickSource interface {
	Milliseconds() uint32
}

// VendorHandler lets a board-specific extension answer vendor-class
// requests (bmRequestType type VENDOR) that fall outside the DFU class
// request set. The handler receives an 8 KiB scratch slice holding a copy
// of both double-buffer slots (§4.E's vendor extension note); writes to it
// do not reach the double buffer. A Core with no VendorHandler configured
// answers every vendor request with ErrorVendor.
type VendorHandler interface {
	VendorRequest(bRequest uint8, wValue, wIndex uint16, scratch []byte) ([]byte, error)
}
