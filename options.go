// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on NewStLinkConfig/NewStLink's
// functional-options constructor shape.

package dfu

// Option configures a Core at construction time.
type Option func(*Core)

// WithZones overrides the default flash zone table (§6), mainly useful in
// tests where small zones make boundary scenarios cheap to exercise.
func WithZones(zones []Zone) Option {
	return func(c *Core) {
		c.zones = newZoneTable(zones)
	}
}

// WithGranularity selects the writer's compile-time erase size (§4.D
// "Sector choice"). Defaults to Erase4K.
func WithGranularity(g Granularity) Option {
	return func(c *Core) {
		c.wr.granularity = g
		c.wr.flags.Set(flagLargeErase, g != Erase4K)
	}
}

// WithVendorHandler installs a delegate for vendor-class requests on the
// DFU interface (§4.E).
func WithVendorHandler(v VendorHandler) Option {
	return func(c *Core) {
		c.vendor = v
	}
}

// WithTickSource installs a monotonic millisecond clock for debug logging
// (§6); Core never consults it for protocol correctness.
func WithTickSource(t TickSource) Option {
	return func(c *Core) {
		c.tick = t
	}
}

// WithInterfaceNumber sets the bInterfaceNumber the request filter checks
// wIndex against (§4.E). Defaults to 0.
func WithInterfaceNumber(intf uint8) Option {
	return func(c *Core) {
		c.intf = intf
	}
}

// NewCore builds a Core wired to transport through a Flash and a fresh
// double buffer / writer, starting in appDETACH (§3) and selecting alt 0's
// zone immediately so the cursors are valid even before the host issues a
// SET_INTERFACE.
func NewCore(transport Transport, boot RebootHook, opts ...Option) (*Core, error) {
	buf := &DoubleBuffer{}
	flash := NewFlash(transport)
	wr := NewWriter(flash, buf, boot, Erase4K)

	c := &Core{
		state:  StateAppDetach,
		status: StatusOK,
		zones:  newZoneTable(nil),
		flash:  flash,
		buf:    buf,
		wr:     wr,
		boot:   boot,
		mask:   newRequestMask(),
	}

	for _, opt := range opts {
		opt(c)
	}

	// the device stack reaching CONFIGURED transitions appDETACH -> dfuIDLE
	// (§3); SetInterface(0) both performs that transition and selects the
	// default zone so every cursor is valid before any control request.
	if err := c.SetInterface(0); err != nil {
		return nil, err
	}

	return c, nil
}
