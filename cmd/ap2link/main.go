// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

// Command ap2link runs the keyboard link coordinator against real LED and
// radio satellites and offers an interactive console for bench testing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-ap2link"
	"github.com/ZaparooProject/go-ap2link/detection"
	"github.com/ZaparooProject/go-ap2link/internal/config"
	"github.com/ZaparooProject/go-ap2link/polling"
	"github.com/ZaparooProject/go-ap2link/transport/uart"
	"github.com/chzyer/readline"
)

const startTimeout = 5 * time.Second

// Package-level flag variables
var (
	flagConfig    string
	flagLED       string
	flagRadio     string
	flagDebug     bool
	flagListPorts bool
	flagDetect    bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "YAML configuration file")
	flag.StringVar(&flagLED, "led", "", "LED satellite serial port (overrides config)")
	flag.StringVar(&flagRadio, "radio", "", "Radio satellite serial port (overrides config)")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagListPorts, "list-ports", false, "List serial ports and exit")
	flag.BoolVar(&flagDetect, "detect", false, "Probe serial ports for the LED satellite and exit")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if flagListPorts {
		return listPorts(os.Stdout)
	}
	if flagDetect {
		if flagDebug {
			ap2link.SetDebugEnabled(true)
		}
		opts := detection.DefaultOptions()
		devices, err := detection.Detect(context.Background(), &opts)
		if err != nil && !errors.Is(err, detection.ErrNoDevicesFound) {
			return err
		}
		printDevices(os.Stdout, devices)
		return nil
	}

	file, err := loadConfig()
	if err != nil {
		return err
	}

	if flagDebug || file.Debug.Enabled {
		ap2link.SetDebugEnabled(true)
	}
	if file.Debug.LogDir != "" {
		path, err := ap2link.InitSessionLog(file.Debug.LogDir)
		if err != nil {
			return fmt.Errorf("session log: %w", err)
		}
		defer func() { _ = ap2link.CloseSessionLog() }()
		_, _ = fmt.Fprintf(os.Stdout, "Session log: %s\n", path)
	}

	cc := file.CoordinatorConfig()
	ledPort, err := uart.New(file.Ports.LED, cc.InitBaud)
	if err != nil {
		return err
	}
	defer func() { _ = ledPort.Close() }()

	radioPort, err := uart.New(file.Ports.Radio, cc.RuntimeBaud)
	if err != nil {
		return err
	}
	defer func() { _ = radioPort.Close() }()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ap2> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	ap2link.SetDebugOutput(rl.Stdout())
	defer ap2link.SetDebugOutput(nil)

	con := newConsole(rl.Stdout())
	coord, err := ap2link.NewCoordinator(ledPort, radioPort, cc, ap2link.WithHostHandler(con))
	if err != nil {
		return err
	}
	con.coord = coord

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, startTimeout)
	err = coord.Start(startCtx)
	startCancel()
	if err != nil {
		return fmt.Errorf("start satellites: %w", err)
	}

	pc := file.PollingConfig()
	recoverer := polling.NewResyncRecoverer(coord,
		pc.SleepRecovery.RecoveryBackoff, pc.SleepRecovery.MaxRecoveryAttempts)
	runner := polling.NewRunner(coord, pc, polling.Callbacks{
		OnError: func(err error) {
			ap2link.Debugf("scan failed: %v", err)
		},
		OnStopped: func(err error) {
			reportStopped(rl.Stdout(), err)
			cancel()
		},
	}, recoverer)
	con.metrics = runner.GetMetrics

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scan loop: %w", err)
	}
	defer func() { _ = runner.Stop(context.Background()) }()

	// Readline blocks in a terminal read; closing it unblocks the console.
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	con.run(ctx, cancel, rl)
	return nil
}

func loadConfig() (*config.File, error) {
	file := &config.File{}
	if flagConfig != "" {
		var err error
		if file, err = config.Load(flagConfig); err != nil {
			return nil, err
		}
	}
	if flagLED != "" {
		file.Ports.LED = flagLED
	}
	if flagRadio != "" {
		file.Ports.Radio = flagRadio
	}
	if err := config.Validate(file); err != nil {
		if errors.Is(err, config.ErrNoPorts) {
			return nil, fmt.Errorf("%w (use -led and -radio, or -list-ports to find them)", err)
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return file, nil
}

func listPorts(w io.Writer) error {
	ports, err := uart.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		_, _ = fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		_, _ = fmt.Fprintln(w, p)
	}
	return nil
}

func printDevices(w io.Writer, devices []detection.DeviceInfo) {
	if len(devices) == 0 {
		_, _ = fmt.Fprintln(w, "No satellite ports found")
		return
	}
	for _, d := range devices {
		_, _ = fmt.Fprintln(w, d)
	}
}

func reportStopped(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Scan loop stopped: %v\n", err)
	if te := ap2link.GetTrace(err); te != nil {
		_, _ = fmt.Fprint(w, te.FormatTrace())
	}
}
