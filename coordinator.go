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

package ap2link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ap2link/internal/frame"
	"github.com/ZaparooProject/go-ap2link/internal/syncutil"
)

// CoordinatorStats counts coordinator activity.
type CoordinatorStats struct {
	Decoder        frame.DecoderStats
	Relay          RelayStats
	Ticks          uint64
	StatusRecords  uint64
	PartialRecords uint64
	Forwarded      uint64
}

// Option configures a Coordinator
type Option func(*Coordinator) error

// WithLEDs replaces the framed LED driver, mostly for tests.
func WithLEDs(leds LEDs) Option {
	return func(c *Coordinator) error {
		if leds == nil {
			return fmt.Errorf("nil LEDs: %w", ErrInvalidParameter)
		}
		c.leds = leds
		return nil
	}
}

// WithRadio replaces the serial radio driver.
func WithRadio(radio Radio) Option {
	return func(c *Coordinator) error {
		if radio == nil {
			return fmt.Errorf("nil radio: %w", ErrInvalidParameter)
		}
		c.radio = radio
		return nil
	}
}

// WithHostHandler sets the receiver for unhandled host commands and LED
// debug output.
func WithHostHandler(h HostHandler) Option {
	return func(c *Coordinator) error {
		if h == nil {
			return fmt.Errorf("nil host handler: %w", ErrInvalidParameter)
		}
		c.host = h
		return nil
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) error {
		c.now = now
		return nil
	}
}

// Coordinator owns all link state: the LED frame decoder, the forward relay,
// the power machine, the status mirror and the last LED status report.
// The host drives it through the Hooks methods.
//
// Thread Safety: Tick, OnByteReceived and OnKeyEvent serialize on an
// internal lock. OnHostCommand and Status never take it, so a host callback
// can run concurrently with a scan.
type Coordinator struct {
	mu        syncutil.RWMutex
	ledPort   Transport
	radioPort Transport
	leds      LEDs
	radio     Radio
	host      HostHandler
	now       func() time.Time
	config    *Config
	decoder   *frame.Decoder
	power     *PowerMachine
	mirror    *StatusMirror
	wire      []byte
	lastRx    time.Time
	relay     Relay
	stats     CoordinatorStats
	ledStatus LEDStatus
	rx        [frame.MaxFrameLength]byte
	record    [StatusRecordSize]byte
}

var _ Hooks = (*Coordinator)(nil)

// NewCoordinator creates a coordinator for the LED and radio transports.
// A nil config uses DefaultConfig.
func NewCoordinator(ledPort, radioPort Transport, config *Config, opts ...Option) (*Coordinator, error) {
	if ledPort == nil || radioPort == nil {
		return nil, fmt.Errorf("both satellite transports are required: %w", ErrInvalidParameter)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		ledPort:   ledPort,
		radioPort: radioPort,
		config:    config,
		decoder:   frame.NewDecoder(),
		host:      nopHostHandler{},
		now:       time.Now,
		wire:      make([]byte, 0, frame.MaxFrameLength),
		// Assume the LEDs come up lit until the first status report.
		ledStatus: LEDStatus{MatrixEnabled: true},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.leds == nil {
		c.leds = NewFrameLEDs(ledPort)
	}
	if c.radio == nil {
		c.radio = NewSerialRadio(radioPort)
	}

	now := c.now()
	c.power = NewPowerMachine(config.InitialLink, config.IdleTimeout, config.SleepEnabled, now)
	c.mirror = NewStatusMirror(config.InitialLink)
	c.lastRx = now
	return c, nil
}

// Start brings both satellites up: the LED wakeup sequence at the init baud
// rate, a receive flush, the switch to the runtime rate, then the radio
// startup and an LED status request.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.setBaud(c.config.InitBaud); err != nil {
		return err
	}
	if err := sleepContext(ctx, c.config.SettleDelay); err != nil {
		return err
	}
	err := RetryWithConfig(ctx, c.config.Retry, func() error {
		_, werr := c.ledPort.Write(frame.WakeupSequence[:])
		return werr
	})
	if err != nil {
		return fmt.Errorf("led wakeup: %w", err)
	}
	if err := sleepContext(ctx, c.config.SettleDelay); err != nil {
		return err
	}
	if err := c.ledPort.Flush(); err != nil {
		return fmt.Errorf("led flush: %w", err)
	}
	c.decoder.Reset()
	if err := c.setBaud(c.config.RuntimeBaud); err != nil {
		return err
	}

	if err := c.radio.Start(); err != nil {
		return fmt.Errorf("radio start: %w", err)
	}
	if err := sleepContext(ctx, c.config.SettleDelay); err != nil {
		return err
	}
	if err := c.radioPort.Flush(); err != nil {
		return fmt.Errorf("radio flush: %w", err)
	}

	if err := c.leds.RequestStatus(); err != nil {
		return fmt.Errorf("led status request: %w", err)
	}
	Debugf("coordinator: started on %s", c.power.Link())
	return nil
}

func (c *Coordinator) setBaud(baud int) error {
	setter, ok := c.ledPort.(BaudRateSetter)
	if !ok {
		return nil
	}
	if err := setter.SetBaudRate(baud); err != nil {
		return fmt.Errorf("led baud %d: %w", baud, err)
	}
	return nil
}

// EnterBootloader puts both satellites into their firmware update mode.
// Resetting the main controller is left to the caller.
func (c *Coordinator) EnterBootloader(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.leds.EnterIAP(); err != nil {
		return fmt.Errorf("led iap: %w", err)
	}
	if err := sleepContext(ctx, c.config.SettleDelay); err != nil {
		return err
	}
	if err := c.radio.Bootload(); err != nil {
		return fmt.Errorf("radio bootload: %w", err)
	}
	return sleepContext(ctx, c.config.SettleDelay)
}

// Tick runs one scan. It reads pending radio status records, decodes and
// dispatches pending LED bytes, transmits a relayed command, and checks the
// idle timer. An empty receive buffer is not an error.
func (c *Coordinator) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.stats.Ticks++

	var errs []error
	if err := c.pollRadioStatus(); err != nil {
		errs = append(errs, err)
	}
	if err := c.pollLED(now); err != nil {
		errs = append(errs, err)
	}
	if err := c.drainRelay(now); err != nil {
		errs = append(errs, err)
	}
	if err := c.apply(c.power.Tick(now)); err != nil {
		errs = append(errs, err)
	}
	if c.decoder.InFrame() && now.Sub(c.lastRx) >= c.config.FrameTimeout {
		Debugf("coordinator: abandoning partial frame after %s", now.Sub(c.lastRx))
		for {
			f, ok := c.decoder.Timeout()
			if !ok {
				break
			}
			if err := c.apply(Dispatch(f)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// OnTick implements Hooks
func (c *Coordinator) OnTick() error {
	return c.Tick()
}

// pollRadioStatus reads whole status records while the radio has data.
// A record that does not complete within StatusReadTimeout is dropped.
func (c *Coordinator) pollRadioStatus() error {
	for range c.config.MaxStatusRecordsPerTick {
		n, err := c.radioPort.Poll(c.record[:1])
		if err != nil {
			return fmt.Errorf("radio status: %w", err)
		}
		if n == 0 {
			return nil
		}
		n, err = c.radioPort.ReadTimeout(c.record[1:], c.config.StatusReadTimeout)
		if err != nil {
			return fmt.Errorf("radio status: %w", err)
		}
		if n < StatusRecordSize-1 {
			c.stats.PartialRecords++
			Debugf("coordinator: dropped partial status record (%d/%d bytes)", n+1, StatusRecordSize)
			return nil
		}
		c.stats.StatusRecords++
		caps := c.record[StatusRecordSize-1] != 0
		c.mirror.UpdateCapsLock(caps)
		if err := c.capsLockIndicator(caps); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) pollLED(now time.Time) error {
	for {
		n, err := c.ledPort.Poll(c.rx[:])
		if err != nil {
			return fmt.Errorf("led receive: %w", err)
		}
		if n == 0 {
			return nil
		}
		c.lastRx = now
		for _, b := range c.rx[:n] {
			if err := c.consume(b); err != nil {
				return err
			}
		}
	}
}

// consume feeds one byte and dispatches every frame it completes.
func (c *Coordinator) consume(b byte) error {
	f, ok := c.decoder.Feed(b)
	for ok {
		if err := c.apply(Dispatch(f)); err != nil {
			return err
		}
		f, ok = c.decoder.Next()
	}
	return nil
}

func (c *Coordinator) drainRelay(now time.Time) error {
	f, ok := c.relay.Drain()
	if !ok {
		return nil
	}
	c.power.Activity(now)

	wire, err := frame.AppendFrame(c.wire[:0], f.Command, f.Payload())
	if err != nil {
		return err
	}
	c.wire = wire
	if _, err := c.ledPort.Write(wire); err != nil {
		return fmt.Errorf("forward 0x%02X: %w", f.Command, err)
	}
	c.stats.Forwarded++
	Debugf("coordinator: forwarded %s", f)
	return nil
}

// OnByteReceived implements Hooks
func (c *Coordinator) OnByteReceived(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastRx = c.now()
	if err := c.consume(b); err != nil {
		Debugf("coordinator: %v", err)
	}
}

// OnHostCommand implements Hooks. A forward sub-command is queued in the
// relay for the next scan; anything else goes to the host handler as is.
func (c *Coordinator) OnHostCommand(data []byte) {
	if len(data) == 0 {
		return
	}
	if data[0] != HostForwardToLED {
		c.host.HandleHostCommand(data)
		return
	}
	if len(data) < 2 {
		Debugf("host: forward command without target")
		return
	}
	c.relay.Post(data[1], data[2:])
}

// OnKeyEvent implements Hooks. It returns true when the keycode was consumed
// and should not reach the keymap layer.
func (c *Coordinator) OnKeyEvent(ev KeyEvent) bool {
	if !ev.Pressed {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// Waking below may re-enable the matrix; LED_ON acts on the state the
	// user saw.
	lit := c.ledStatus.MatrixEnabled
	if lit && c.ledStatus.IsReactive {
		c.logErr(c.leds.ForwardKeypress(ev.Row, ev.Col))
	}
	c.logErr(c.apply(c.power.KeyPressed(now)))

	switch ev.Keycode {
	case KeyBT1, KeyBT2, KeyBT3, KeyBT4:
		peer, _ := ev.Keycode.Peer()
		c.logErr(c.apply(c.power.SelectLink(peer, now)))
		return true
	case KeyUSB:
		c.logErr(c.apply(c.power.SelectLink(LinkUSB, now)))
		return true
	case KeyBTUnpair:
		c.logErr(c.apply(c.power.Unpair()))
		return true
	case KeyLEDOff:
		c.logErr(c.setRendering(false))
		return false
	case KeyLEDOn:
		switch {
		case lit:
			c.logErr(c.leds.NextProfile())
		case !c.ledStatus.MatrixEnabled:
			c.logErr(c.setRendering(true))
		}
		c.logErr(c.leds.ResetForegroundColor())
		return false
	case KeyLEDNextProfile:
		c.logErr(c.leds.NextProfile())
		c.logErr(c.leds.ResetForegroundColor())
		return false
	case KeyLEDPrevProfile:
		c.logErr(c.leds.PrevProfile())
		c.logErr(c.leds.ResetForegroundColor())
		return false
	case KeyLEDNextIntensity:
		c.logErr(c.leds.NextIntensity())
		c.logErr(c.leds.ResetForegroundColor())
		return true
	case KeyLEDSpeed:
		c.logErr(c.leds.NextAnimationSpeed())
		c.logErr(c.leds.ResetForegroundColor())
		return true
	default:
		return false
	}
}

func (*Coordinator) logErr(err error) {
	if err != nil {
		Debugf("coordinator: %v", err)
	}
}

// apply carries out effects in order. Every effect is attempted; the
// failures are joined.
func (c *Coordinator) apply(effects []Effect) error {
	var errs []error
	for _, e := range effects {
		if err := c.applyOne(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) applyOne(e Effect) error {
	switch e := e.(type) {
	case UpdateStatusEffect:
		if e.HasLink {
			c.mirror.Update(e.Status)
		} else {
			c.mirror.UpdateCapsLock(e.Status.CapsLock)
		}
		return nil
	case CapsLockIndicatorEffect:
		return c.capsLockIndicator(e.On)
	case LEDStatusEffect:
		Debugf("coordinator: led %s", e.Status)
		c.ledStatus = e.Status
		c.power.SetRendering(e.Status.MatrixEnabled)
		return nil
	case ForwardToHostEffect:
		c.host.HandleLEDDebug(e.Data)
		return nil
	case RenderingEffect:
		return c.setRendering(e.Enabled)
	case RadioEffect:
		return c.applyRadio(e)
	case BlinkEffect:
		return c.leds.Blink(e.Row, e.Col, e.Color, e.Count, e.Duration)
	default:
		return fmt.Errorf("unsupported effect %T: %w", e, ErrInvalidParameter)
	}
}

func (c *Coordinator) applyRadio(e RadioEffect) error {
	switch e.Action {
	case RadioBroadcast:
		peer, ok := e.Link.Peer()
		if !ok {
			return fmt.Errorf("broadcast on %s: %w", e.Link, ErrInvalidParameter)
		}
		return c.radio.Broadcast(peer)
	case RadioDisconnect:
		return c.radio.Disconnect()
	case RadioUnpair:
		return c.radio.Unpair()
	default:
		return fmt.Errorf("radio %s: %w", e.Action, ErrInvalidParameter)
	}
}

func (c *Coordinator) setRendering(enabled bool) error {
	c.ledStatus.MatrixEnabled = enabled
	c.power.SetRendering(enabled)
	return c.leds.SetRendering(enabled)
}

func (c *Coordinator) capsLockIndicator(on bool) error {
	if !c.config.CapsLockIndicator {
		return nil
	}
	if on {
		return c.leds.ClearMask(c.config.CapsLockKey)
	}
	return c.leds.SetMask(c.config.CapsLockKey)
}

// Resync drops any partial LED frame and pending receive bytes on both
// transports, for use after the host has been suspended.
func (c *Coordinator) Resync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.decoder.Reset()
	c.lastRx = c.now()
	return errors.Join(c.ledPort.Flush(), c.radioPort.Flush())
}

// Status returns the mirrored radio status without locking.
func (c *Coordinator) Status() Status {
	return c.mirror.Read()
}

// LEDStatus returns the last LED status report.
func (c *Coordinator) LEDStatus() LEDStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledStatus
}

// PowerState returns whether the keyboard is awake.
func (c *Coordinator) PowerState() PowerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.power.State()
}

// Link returns the active link.
func (c *Coordinator) Link() Link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.power.Link()
}

// Stats returns a snapshot of the coordinator counters.
func (c *Coordinator) Stats() CoordinatorStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Decoder = c.decoder.Stats()
	s.Relay = c.relay.Stats()
	return s
}
