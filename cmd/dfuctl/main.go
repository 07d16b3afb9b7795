// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// dfuctl drives a real DFU-mode device over USB: it is the host side of
// the link described in §1. It talks to the device only through USB
// control transfers and does not use the core in this module.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gousb"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// bmRequestType values for class requests on the DFU interface (§6, §4.E).
const (
	reqTypeClassOut = 0x21 // host-to-device, class, interface
	reqTypeClassIn  = 0xa1 // device-to-host, class, interface
)

const (
	bReqDetach    = 0
	bReqDnload    = 1
	bReqUpload    = 2
	bReqGetStatus = 3
	bReqClrStatus = 4
	bReqGetState  = 5
	bReqAbort     = 6
)

var (
	exitProgram chan bool
	logger      *logrus.Logger
)

func setUpSignalHandler() {
	signals := make(chan os.Signal, 1)
	exitProgram = make(chan bool, 1)

	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		exitProgram <- true
	}()
}

func initLogger(level int) {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	}

	logger = logrus.New()
	logger.SetFormatter(formatter)
	logger.SetOutput(colorable.NewColorableStdout())
	logger.SetLevel(logrus.Level(level))
}

func openDevice(ctx *gousb.Context, vid, pid uint) (*gousb.Device, error) {
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("no device matching %04x:%04x found", vid, pid)
	}
	return dev, nil
}

func getStatus(dev *gousb.Device, intf uint16) ([6]byte, error) {
	var resp [6]byte
	_, err := dev.Control(reqTypeClassIn, bReqGetStatus, 0, intf, resp[:])
	return resp, err
}

func waitIdle(dev *gousb.Device, intf uint16) error {
	for {
		resp, err := getStatus(dev, intf)
		if err != nil {
			return err
		}

		state := resp[4]
		pollMs := uint32(resp[1]) | uint32(resp[2])<<8 | uint32(resp[3])<<16

		logger.Debugf("state=0x%02x status=0x%02x poll=%dms", state, resp[0], pollMs)

		// dfuDNLOAD_IDLE(5), dfuIDLE(2), dfuUPLOAD_IDLE(9) — any settled
		// state the caller can act on next.
		if state != 3 && state != 4 { // not dfuDNLOAD_SYNC, not dfuDNBUSY
			return nil
		}

		time.Sleep(time.Duration(pollMs) * time.Millisecond)
	}
}

func download(dev *gousb.Device, intf uint16, alt int, path string) error {
	image, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}

	if _, err := dev.Control(0x01, 0x0b /* SET_INTERFACE */, uint16(alt), intf, nil); err != nil {
		return err
	}

	const chunk = 4096
	for off := 0; off < len(image); off += chunk {
		end := off + chunk
		if end > len(image) {
			end = len(image)
		}

		logger.Infof("DNLOAD %d/%d bytes", end, len(image))

		if _, err := dev.Control(reqTypeClassOut, bReqDnload, 0, intf, image[off:end]); err != nil {
			return err
		}
		if err := waitIdle(dev, intf); err != nil {
			return err
		}
	}

	// wLength == 0 DNLOAD signals end of transfer (§4.E).
	if _, err := dev.Control(reqTypeClassOut, bReqDnload, 0, intf, nil); err != nil {
		return err
	}

	return waitIdle(dev, intf)
}

func main() {
	flagLogLevel := flag.Int("LogLevel", int(logrus.InfoLevel), "Logging verbosity [0 - 6]")
	flagVID := flag.Uint("VID", 0x1d50, "device vendor id")
	flagPID := flag.Uint("PID", 0x614b, "device product id")
	flagIntf := flag.Uint("Interface", 0, "DFU interface number")
	flagAlt := flag.Int("Alt", 0, "alternate setting / flash zone to target")
	flagImage := flag.String("Image", "", "firmware image to download")

	flag.Parse()

	initLogger(*flagLogLevel)
	logger.Info("Welcome to dfuctl, the DFU bootloader core's host-side companion...")

	if *flagImage == "" {
		logger.Fatal("an -Image path is required")
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := openDevice(ctx, *flagVID, *flagPID)
	if err != nil {
		logger.Fatal("error while opening device: ", err)
	}
	defer dev.Close()

	setUpSignalHandler()

	if err := download(dev, uint16(*flagIntf), *flagAlt, *flagImage); err != nil {
		logger.Fatal("error during download: ", err)
	}

	logger.Info("download complete")
}
