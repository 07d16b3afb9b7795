// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// dfusim runs the DFU bootloader core against an in-memory simulated flash
// (no hardware, no USB stack required) — useful for exercising a firmware
// image against the core's bounds/retry/manifest logic before ever
// touching a board.
package main

import (
	"flag"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emard/had2019-playground"
	"github.com/sirupsen/logrus"
)

type stdoutReboot struct{ logger *logrus.Logger }

func (r stdoutReboot) Reboot() {
	r.logger.Info("reboot hook invoked, exiting simulation")
	os.Exit(0)
}

func main() {
	flagLogLevel := flag.Int("LogLevel", int(logrus.InfoLevel), "Logging verbosity [0 - 6]")
	flagImage := flag.String("Image", "", "firmware image to flash into the simulated chip")
	flagAlt := flag.Int("Alt", 0, "alternate setting / flash zone to target")

	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.Level(*flagLogLevel))
	dfu.SetLogger(logger)

	logger.Info("Welcome to dfusim, the in-process DFU bootloader simulator...")

	if *flagImage == "" {
		logger.Fatal("an -Image path is required")
	}

	image, err := ioutil.ReadFile(*flagImage)
	if err != nil {
		logger.Fatal("error reading image: ", err)
	}

	transport := dfu.NewMemTransport(16 * 1024 * 1024)
	core, err := dfu.NewCore(transport, stdoutReboot{logger})
	if err != nil {
		logger.Fatal("error constructing core: ", err)
	}

	if err := core.SetInterface(uint8(*flagAlt)); err != nil {
		logger.Fatal("error selecting alt setting: ", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		os.Exit(0)
	}()

	const chunk = 4096
	for off := 0; off < len(image); off += chunk {
		end := off + chunk
		if end > len(image) {
			end = len(image)
		}

		logger.Infof("DNLOAD %d/%d bytes", end, len(image))

		_, _, err := core.Dispatch(0x01, dfu.ReqDnload, 0, 0, image[off:end])
		if err != nil {
			logger.Fatal("DNLOAD rejected: ", err)
		}

		for {
			resp, _, err := core.Dispatch(0x01, dfu.ReqGetStatus, 0, 0, nil)
			if err != nil {
				logger.Fatal("GETSTATUS failed: ", err)
			}

			state := resp[4]
			if state != byte(dfu.StateDfuDnloadSync) && state != byte(dfu.StateDfuDnbusy) {
				break
			}

			if err := core.Tick(); err != nil {
				logger.Fatal("writer tick failed: ", err)
			}

			time.Sleep(time.Millisecond)
		}
	}

	// wLength == 0 DNLOAD signals end of transfer (§4.E), then GETSTATUS
	// drains the writer synchronously via the manifest shortcut.
	if _, _, err := core.Dispatch(0x01, dfu.ReqDnload, 0, 0, nil); err != nil {
		logger.Fatal("end-of-transfer DNLOAD rejected: ", err)
	}

	if _, _, err := core.Dispatch(0x01, dfu.ReqGetStatus, 0, 0, nil); err != nil {
		logger.Fatal("final GETSTATUS failed: ", err)
	}

	logger.Info("simulation complete, image committed to simulated flash")
}
