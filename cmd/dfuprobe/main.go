// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// dfuprobe finds a DFU-mode device on the bus and prints its current
// state/status, a minimal diagnostic companion to dfuctl.
package main

import (
	"flag"

	"github.com/google/gousb"
	log "github.com/sirupsen/logrus"
)

const (
	reqTypeClassIn = 0xa1
	bReqGetStatus  = 3
	bReqGetState   = 5
)

func stateName(b byte) string {
	names := [...]string{
		"appIDLE", "appDETACH", "dfuIDLE", "dfuDNLOAD_SYNC", "dfuDNBUSY",
		"dfuDNLOAD_IDLE", "dfuMANIFEST_SYNC", "dfuMANIFEST",
		"dfuMANIFEST_WAIT_RESET", "dfuUPLOAD_IDLE", "dfuERROR",
	}
	if int(b) < len(names) {
		return names[b]
	}
	return "UNKNOWN"
}

func main() {
	flagVID := flag.Uint("VID", 0x1d50, "device vendor id")
	flagPID := flag.Uint("PID", 0x614b, "device product id")
	flagIntf := flag.Uint("Interface", 0, "DFU interface number")
	flag.Parse()

	log.Info("Starting dfuprobe...")

	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(*flagVID), gousb.ID(*flagPID))
	if err != nil || dev == nil {
		log.Fatalf("could not find device %04x:%04x: %v", *flagVID, *flagPID, err)
	}
	defer dev.Close()

	var status [6]byte
	if _, err := dev.Control(reqTypeClassIn, bReqGetStatus, 0, uint16(*flagIntf), status[:]); err != nil {
		log.Fatal("GETSTATUS failed: ", err)
	}

	var state [1]byte
	if _, err := dev.Control(reqTypeClassIn, bReqGetState, 0, uint16(*flagIntf), state[:]); err != nil {
		log.Fatal("GETSTATE failed: ", err)
	}

	log.Infof("bStatus=0x%02x bState=0x%02x (%s) bwPollTimeout=%dms GETSTATE=0x%02x",
		status[0], status[4], stateName(status[4]),
		uint32(status[1])|uint32(status[2])<<8|uint32(status[3])<<16, state[0])
}
