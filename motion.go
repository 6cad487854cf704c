package bmi323

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MotionEvent identifies a motion-detection event signaled by the feature
// engine, as opposed to raw data availability.
type MotionEvent uint8

const (
	EventAnyMotion MotionEvent = iota
	EventNoMotion
)

func (e MotionEvent) String() string {
	switch e {
	case EventAnyMotion:
		return "any-motion"
	case EventNoMotion:
		return "no-motion"
	default:
		return "unknown"
	}
}

// Reporter receives samples and motion events from a running MotionSwitch.
// All methods are called from the acquisition loop goroutine.
type Reporter interface {
	// Sample is called once per subsystem whose data-ready bit was set.
	Sample(kind SensorKind, s Sample)
	// Motion is called once per motion event, with the alternate status
	// read after the event. If that read failed, alt reports "user" for
	// both subsystems and Error is called with the underlying cause.
	Motion(e MotionEvent, alt AlternateStatus)
	// Error is called for non-fatal read failures inside the loop.
	Error(op string, err error)
}

// logReporter is the default Reporter, printing through the package logger.
type logReporter struct{}

func (logReporter) Sample(kind SensorKind, s Sample) {
	globalLogger.Info(fmt.Sprintf("%s x=%d y=%d z=%d sensor time %d", kind, s.X, s.Y, s.Z, s.SensorTime))
}

func (logReporter) Motion(e MotionEvent, alt AlternateStatus) {
	globalLogger.Info(fmt.Sprintf("%s interrupt generated, %s", e, alt))
}

func (logReporter) Error(op string, err error) {
	globalLogger.Error(op + ": " + err.Error())
}

// MotionSwitchConfig tunes the motion-triggered configuration switching.
// Zero values select the defaults listed per field.
type MotionSwitchConfig struct {
	// Limit is the number of any-motion events after which Run returns.
	// Defaults to 5. Negative runs until the context is cancelled.
	// No-motion events never count toward the limit.
	Limit int
	// PollInterval is the sleep between loop iterations with no pending
	// event flag. Defaults to 500 microseconds.
	PollInterval time.Duration
	// AnyMotion parameterizes the any-motion detector.
	// Defaults to threshold 9, hysteresis 9, duration 9.
	AnyMotion AnyMotionConfig
	// NoMotion parameterizes the no-motion detector.
	// Defaults to threshold 8, hysteresis 9, duration 9.
	NoMotion NoMotionConfig
	// AltSwitchSource is the detector that switches the chip into the
	// alternate configuration. Defaults to no-motion.
	AltSwitchSource SwitchSource
	// UserSwitchSource is the detector that switches the chip back to the
	// user configuration. Defaults to any-motion. Must differ from
	// AltSwitchSource.
	UserSwitchSource SwitchSource
	// UserODR is the output data rate of the user configuration.
	// Defaults to 100Hz.
	UserODR ODR
	// AltODR is the output data rate of the alternate configuration.
	// Defaults to 400Hz.
	AltODR ODR
	// AltAverage is the sample averaging of the alternate configuration.
	// Defaults to Avg4.
	AltAverage Average
	// Reporter receives samples and events. Defaults to a logger-backed
	// reporter.
	Reporter Reporter
}

// MotionSwitch wires the sensor's autonomous user/alternate configuration
// switching to the two interrupt pins and drives the acquisition loop.
//
// The two event flags are the only state shared with interrupt context: each
// is set only by its pin callback and cleared only by the loop, via an
// atomic swap, so a new edge arriving between clear and status read is never
// lost (the status register stays latched until read, at worst coalescing
// two edges into one observed event).
type MotionSwitch struct {
	dev   *Device
	cfg   MotionSwitchConfig
	rep   Reporter
	drdy  atomic.Bool
	feat  atomic.Bool
	count int
}

// NewMotionSwitch configures the device for motion-triggered configuration
// switching and returns a MotionSwitch ready to Run. Both interrupt pins
// must be wired.
//
// Setup pushes all seven configuration blocks as one batch (fetch current
// values, overwrite, write back), hands configuration control to the
// feature engine with averaging state preserved across switches, enables
// the any/no-motion detectors on the x-axis, routes data-ready to INT1 and
// the motion detectors to INT2, and attaches the edge callbacks. Any
// failure except interrupt pin electrical configuration aborts setup.
func NewMotionSwitch(dev *Device, cfg MotionSwitchConfig) (*MotionSwitch, error) {
	if dev.config.Int1 == nil || dev.config.Int2 == nil {
		return nil, fmt.Errorf("%w: both interrupt pins must be wired for motion switching", ErrPkg)
	}

	if cfg.Limit == 0 {
		cfg.Limit = 5
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Microsecond
	}
	if cfg.AnyMotion == (AnyMotionConfig{}) {
		cfg.AnyMotion = AnyMotionConfig{Threshold: 9, Hysteresis: 9, Duration: 9}
	}
	if cfg.NoMotion == (NoMotionConfig{}) {
		cfg.NoMotion = NoMotionConfig{Threshold: 8, Hysteresis: 9, Duration: 9}
	}
	if cfg.AltSwitchSource == switchUnset {
		cfg.AltSwitchSource = SwitchNoMotion
	}
	if cfg.UserSwitchSource == switchUnset {
		cfg.UserSwitchSource = SwitchAnyMotion
	}
	if cfg.UserODR == 0 {
		cfg.UserODR = ODR100Hz
	}
	if cfg.AltODR == 0 {
		cfg.AltODR = ODR400Hz
	}
	if cfg.AltAverage == 0 {
		cfg.AltAverage = Avg4
	}
	if cfg.Reporter == nil {
		cfg.Reporter = logReporter{}
	}

	selector := AltAutoConfig{
		AltSwitchSource:  cfg.AltSwitchSource,
		UserSwitchSource: cfg.UserSwitchSource,
	}
	if err := selector.Validate(); err != nil {
		return nil, err
	}

	m := &MotionSwitch{
		dev: dev,
		cfg: cfg,
		rep: cfg.Reporter,
	}
	if err := m.setup(selector); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MotionSwitch) setup(selector AltAutoConfig) error {
	cfgs, err := m.dev.GetConfigs(
		KindAccel, KindAnyMotion, KindNoMotion, KindAltAuto,
		KindAltAccel, KindGyro, KindAltGyro,
	)
	if err != nil {
		return fmt.Errorf("get sensor config: %w", err)
	}

	// Overwrite the fetched defaults with the application policy. The
	// hardware owns which configuration is active at runtime; these blocks
	// are never touched again after the batch write.
	acc := cfgs[0].(AccelConfig)
	acc.Mode = AccelModeNormal
	acc.ODR = m.cfg.UserODR

	anyMot := cfgs[1].(AnyMotionConfig)
	anyMot.Threshold = m.cfg.AnyMotion.Threshold
	anyMot.Hysteresis = m.cfg.AnyMotion.Hysteresis
	anyMot.Duration = m.cfg.AnyMotion.Duration

	noMot := cfgs[2].(NoMotionConfig)
	noMot.Threshold = m.cfg.NoMotion.Threshold
	noMot.Hysteresis = m.cfg.NoMotion.Hysteresis
	noMot.Duration = m.cfg.NoMotion.Duration

	altAcc := cfgs[4].(AltAccelConfig)
	altAcc.Mode = AccelModeNormal
	altAcc.ODR = m.cfg.AltODR
	altAcc.Average = m.cfg.AltAverage

	gyr := cfgs[5].(GyroConfig)
	gyr.Mode = GyroModeNormal
	gyr.ODR = m.cfg.UserODR

	altGyr := cfgs[6].(AltGyroConfig)
	altGyr.Mode = GyroModeNormal
	altGyr.ODR = m.cfg.AltODR
	altGyr.Average = m.cfg.AltAverage

	if err := m.dev.SetConfigs(acc, anyMot, noMot, selector, altAcc, gyr, altGyr); err != nil {
		return fmt.Errorf("set sensor config: %w", err)
	}

	if err := m.dev.EnableAlternateConfig(true, true, NoResetOnSwitch); err != nil {
		return fmt.Errorf("enable alternate config control: %w", err)
	}

	if err := m.dev.SelectFeatures(FeatureEnable{AnyMotionX: true, NoMotionX: true}); err != nil {
		return fmt.Errorf("select features: %w", err)
	}

	// Electrical pin configuration failures are logged but do not abort:
	// the chip still signals on the power-on pin defaults.
	pc, err := m.dev.GetIntPinConfig()
	if err != nil {
		globalLogger.Warn("get int pin config failed: " + err.Error())
	} else {
		pc.Int1 = PinConfig{OutputEnable: true, ActiveHigh: true}
		pc.Int2 = PinConfig{OutputEnable: true, ActiveHigh: true}
		if err := m.dev.SetIntPinConfig(pc); err != nil {
			globalLogger.Warn("set int pin config failed: " + err.Error())
		}
	}

	if err := m.dev.MapInterrupt(InterruptMap{
		AccelDataReady: Int1,
		GyroDataReady:  Int1,
		AnyMotion:      Int2,
		NoMotion:       Int2,
	}); err != nil {
		return fmt.Errorf("map interrupt: %w", err)
	}

	// The callbacks only set a flag. No bus access, no blocking.
	if err := m.dev.config.Int1.Watch(FallingEdge, func() { m.drdy.Store(true) }); err != nil {
		return fmt.Errorf("failed to watch INT1 pin: %w", err)
	}
	if err := m.dev.config.Int2.Watch(FallingEdge, func() { m.feat.Store(true) }); err != nil {
		return fmt.Errorf("failed to watch INT2 pin: %w", err)
	}

	return nil
}

// Run drives the acquisition loop until the configured number of any-motion
// events has been observed or the context is cancelled. Read failures inside
// the loop are reported and the loop continues.
func (m *MotionSwitch) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if m.step() {
			return nil
		}

		if !m.drdy.Load() && !m.feat.Load() {
			time.Sleep(m.cfg.PollInterval)
		}
	}
}

// step consumes the pending event flags once and reports whether the
// any-motion limit has been reached.
func (m *MotionSwitch) step() bool {
	if m.drdy.Swap(false) {
		m.onDataReady()
	}
	if m.feat.Swap(false) {
		m.onFeature()
	}
	return m.cfg.Limit > 0 && m.count >= m.cfg.Limit
}

// onDataReady consumes one data-ready event. Both subsystem bits may be set
// in the same status word; both are reported.
func (m *MotionSwitch) onDataReady() {
	st, err := m.dev.IntStatus1()
	if err != nil {
		m.rep.Error("read interrupt status", err)
		return
	}

	if st&IntStatusAccelDrdy != 0 {
		if s, err := m.dev.ReadSample(SensorAccel); err != nil {
			m.rep.Error("get sensor data", err)
		} else {
			m.rep.Sample(SensorAccel, s)
		}
	}
	if st&IntStatusGyroDrdy != 0 {
		if s, err := m.dev.ReadSample(SensorGyro); err != nil {
			m.rep.Error("get sensor data", err)
		} else {
			m.rep.Sample(SensorGyro, s)
		}
	}
}

// onFeature consumes one feature event. The reported alternate status is
// reset to "user" for both subsystems before the read, so a failed read
// reports the defaults rather than stale data.
func (m *MotionSwitch) onFeature() {
	alt := AlternateStatus{}

	st, err := m.dev.IntStatus2()
	if err != nil {
		m.rep.Error("read interrupt status", err)
		return
	}

	if st&IntStatusAnyMotion != 0 {
		if as, err := m.dev.ReadAlternateStatus(); err != nil {
			m.rep.Error("read alternate status", err)
		} else {
			alt = as
		}
		m.rep.Motion(EventAnyMotion, alt)
		m.count++
	}
	if st&IntStatusNoMotion != 0 {
		if as, err := m.dev.ReadAlternateStatus(); err != nil {
			m.rep.Error("read alternate status", err)
		} else {
			alt = as
		}
		m.rep.Motion(EventNoMotion, alt)
	}
}

// Count returns the number of any-motion events observed so far. It is not
// synchronized with the loop; call it after Run returns or from reporter
// callbacks.
func (m *MotionSwitch) Count() int {
	return m.count
}
