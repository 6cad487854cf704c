package bmi323

import (
	"context"
	"errors"
	"testing"
	"time"
)

type motionRecord struct {
	event MotionEvent
	alt   AlternateStatus
}

type sampleRecord struct {
	kind SensorKind
	s    Sample
}

// recordReporter captures everything the acquisition loop reports. onMotion,
// when set, runs inside the loop after each motion event.
type recordReporter struct {
	samples  []sampleRecord
	motions  []motionRecord
	errs     []string
	onMotion func(e MotionEvent)
}

func (r *recordReporter) Sample(kind SensorKind, s Sample) {
	r.samples = append(r.samples, sampleRecord{kind, s})
}

func (r *recordReporter) Motion(e MotionEvent, alt AlternateStatus) {
	r.motions = append(r.motions, motionRecord{e, alt})
	if r.onMotion != nil {
		r.onMotion(e)
	}
}

func (r *recordReporter) Error(op string, err error) {
	r.errs = append(r.errs, op+": "+err.Error())
}

func newTestSwitch(t *testing.T, spi *mockSPI, cfg MotionSwitchConfig) (*MotionSwitch, *mockPin, *mockPin, *recordReporter) {
	t.Helper()
	dev, int1, int2 := newTestDevice(t, spi)
	rep := &recordReporter{}
	cfg.Reporter = rep
	sw, err := NewMotionSwitch(dev, cfg)
	if err != nil {
		t.Fatalf("NewMotionSwitch failed: %v", err)
	}
	return sw, int1, int2, rep
}

// runUntilDone guards against a loop that never terminates.
func runUntilDone(t *testing.T, sw *MotionSwitch) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- sw.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate")
		return nil
	}
}

func TestMotionSwitchRequiresBothPins(t *testing.T) {
	spi := newMockSPI()
	dev, err := NewWithHardware(HardwareConfig{Int1: &mockPin{}}, spi)
	if err != nil {
		t.Fatalf("NewWithHardware failed: %v", err)
	}
	if _, err := NewMotionSwitch(dev, MotionSwitchConfig{}); err == nil {
		t.Fatal("Expected error with INT2 unwired, got nil")
	}
}

func TestMotionSwitchRejectsSameSwitchSource(t *testing.T) {
	spi := newMockSPI()
	dev, _, _ := newTestDevice(t, spi)
	_, err := NewMotionSwitch(dev, MotionSwitchConfig{
		AltSwitchSource:  SwitchAnyMotion,
		UserSwitchSource: SwitchAnyMotion,
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestMotionSwitchSetup(t *testing.T) {
	spi := newMockSPI()
	_, int1, int2, _ := newTestSwitch(t, spi, MotionSwitchConfig{})

	// Alternate-config control enabled for both subsystems, no reset on
	// switch.
	if got := spi.regs[_ALT_CONF]; got != _ALT_ACC_EN|_ALT_GYR_EN {
		t.Errorf("ALT_CONF expected 0x%04X, got 0x%04X", uint16(_ALT_ACC_EN|_ALT_GYR_EN), got)
	}

	// Any/no-motion enabled on the x-axis.
	want := uint16(_FEAT_ANY_MOTION_X_EN | _FEAT_NO_MOTION_X_EN)
	if got := spi.regs[_FEATURE_IO0]; got != want {
		t.Errorf("FEATURE_IO0 expected 0x%04X, got 0x%04X", want, got)
	}

	// Data-ready on INT1, motion detectors on INT2.
	if got := spi.regs[_INT_MAP1]; got != 0x000A {
		t.Errorf("INT_MAP1 expected 0x000A, got 0x%04X", got)
	}
	if got := spi.regs[_INT_MAP2]; got != 0x0500 {
		t.Errorf("INT_MAP2 expected 0x0500, got 0x%04X", got)
	}

	// Both pins watched on the falling edge, callbacks attached.
	if int1.edge != FallingEdge || int1.handler == nil {
		t.Error("INT1 not watched on falling edge")
	}
	if int2.edge != FallingEdge || int2.handler == nil {
		t.Error("INT2 not watched on falling edge")
	}

	// User and alternate ODRs pushed to the chip.
	if got := spi.regs[_ACC_CONF] & _CONF_ODR_MASK; got != uint16(ODR100Hz) {
		t.Errorf("ACC_CONF ODR expected 100Hz, got 0x%04X", got)
	}
	if got := spi.regs[_ALT_ACC_CONF] & _CONF_ODR_MASK; got != uint16(ODR400Hz) {
		t.Errorf("ALT_ACC_CONF ODR expected 400Hz, got 0x%04X", got)
	}
}

func TestDataReadyEdgeConsumedOnce(t *testing.T) {
	spi := newMockSPI()
	sw, int1, _, _ := newTestSwitch(t, spi, MotionSwitchConfig{})

	before := spi.readCount[_INT_STATUS_INT1]
	int1.fire()
	sw.step()
	if got := spi.readCount[_INT_STATUS_INT1] - before; got != 1 {
		t.Errorf("Expected exactly one status-1 read after one edge, got %d", got)
	}

	// Flag must be cleared: a second iteration without a new edge reads
	// nothing.
	sw.step()
	if got := spi.readCount[_INT_STATUS_INT1] - before; got != 1 {
		t.Errorf("Flag not cleared: %d status-1 reads after one edge", got)
	}
}

func TestBothDataReadyBitsReported(t *testing.T) {
	spi := newMockSPI()
	sw, int1, _, rep := newTestSwitch(t, spi, MotionSwitchConfig{})

	spi.regs[_INT_STATUS_INT1] = IntStatusAccelDrdy | IntStatusGyroDrdy
	spi.regs[_ACC_DATA_X] = 100
	spi.regs[_GYR_DATA_X] = 200

	int1.fire()
	sw.step()

	if len(rep.samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(rep.samples))
	}
	if rep.samples[0].kind != SensorAccel || rep.samples[0].s.X != 100 {
		t.Errorf("Unexpected first sample: %+v", rep.samples[0])
	}
	if rep.samples[1].kind != SensorGyro || rep.samples[1].s.X != 200 {
		t.Errorf("Unexpected second sample: %+v", rep.samples[1])
	}
}

func TestAnyMotionIncrementsCounter(t *testing.T) {
	spi := newMockSPI()
	sw, _, int2, rep := newTestSwitch(t, spi, MotionSwitchConfig{})

	spi.regs[_INT_STATUS_INT2] = IntStatusAnyMotion
	spi.regs[_ALT_STATUS] = _ALT_STATUS_GYR

	int2.fire()
	sw.step()

	if sw.Count() != 1 {
		t.Errorf("Expected counter 1, got %d", sw.Count())
	}
	if len(rep.motions) != 1 {
		t.Fatalf("Expected 1 motion event, got %d", len(rep.motions))
	}
	got := rep.motions[0]
	if got.event != EventAnyMotion {
		t.Errorf("Expected any-motion event, got %s", got.event)
	}
	if got.alt != (AlternateStatus{GyroAlternate: true}) {
		t.Errorf("Unexpected alternate status: %s", got.alt)
	}
}

func TestNoMotionDoesNotCount(t *testing.T) {
	spi := newMockSPI()
	sw, _, int2, rep := newTestSwitch(t, spi, MotionSwitchConfig{Limit: 1})

	spi.regs[_INT_STATUS_INT2] = IntStatusNoMotion

	int2.fire()
	done := sw.step()

	if done {
		t.Error("Loop terminated on a no-motion event")
	}
	if sw.Count() != 0 {
		t.Errorf("Expected counter 0, got %d", sw.Count())
	}
	if len(rep.motions) != 1 || rep.motions[0].event != EventNoMotion {
		t.Fatalf("Expected one no-motion event, got %+v", rep.motions)
	}
}

func TestRunTerminatesAtLimit(t *testing.T) {
	spi := newMockSPI()
	sw, _, int2, rep := newTestSwitch(t, spi, MotionSwitchConfig{Limit: 5})

	spi.regs[_INT_STATUS_INT2] = IntStatusAnyMotion
	rep.onMotion = func(MotionEvent) {
		if len(rep.motions) < 5 {
			int2.fire()
		}
	}

	int2.fire()
	if err := runUntilDone(t, sw); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if sw.Count() != 5 {
		t.Errorf("Expected exactly 5 any-motion events, got %d", sw.Count())
	}
	if len(rep.motions) != 5 {
		t.Errorf("Expected 5 reported events, got %d", len(rep.motions))
	}
}

// One any-motion edge with alternate accel active and limit 1: the loop must
// report accel=alternate gyro=user, count the event and terminate.
func TestSingleAnyMotionScenario(t *testing.T) {
	spi := newMockSPI()
	sw, _, int2, rep := newTestSwitch(t, spi, MotionSwitchConfig{Limit: 1})

	spi.regs[_INT_STATUS_INT2] = IntStatusAnyMotion
	spi.regs[_ALT_STATUS] = _ALT_STATUS_ACC

	int2.fire()
	if err := runUntilDone(t, sw); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if sw.Count() != 1 {
		t.Errorf("Expected counter 1, got %d", sw.Count())
	}
	if len(rep.motions) != 1 {
		t.Fatalf("Expected 1 motion event, got %d", len(rep.motions))
	}
	want := AlternateStatus{AccelAlternate: true}
	if rep.motions[0].alt != want {
		t.Errorf("Expected %s, got %s", want, rep.motions[0].alt)
	}
}

func TestRunHonorsContextCancel(t *testing.T) {
	spi := newMockSPI()
	sw, _, _, _ := newTestSwitch(t, spi, MotionSwitchConfig{Limit: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not observe cancellation")
	}
}

// A failed alternate-status read after a feature event reports the pre-reset
// "user" defaults, not stale data, and surfaces the cause via the error hook.
func TestAlternateStatusReadFailureReportsUser(t *testing.T) {
	spi := newMockSPI()
	sw, _, int2, rep := newTestSwitch(t, spi, MotionSwitchConfig{})

	spi.regs[_INT_STATUS_INT2] = IntStatusAnyMotion
	spi.failRead[_ALT_STATUS] = errors.New("bus fault")

	int2.fire()
	sw.step()

	if len(rep.motions) != 1 {
		t.Fatalf("Expected 1 motion event, got %d", len(rep.motions))
	}
	if rep.motions[0].alt != (AlternateStatus{}) {
		t.Errorf("Expected user/user defaults on read failure, got %s", rep.motions[0].alt)
	}
	if len(rep.errs) == 0 {
		t.Error("Expected read failure surfaced via the error hook")
	}
	if sw.Count() != 1 {
		t.Errorf("Any-motion still counts despite failed status read, got %d", sw.Count())
	}
}

// Loop-phase status read failures must not stop the loop.
func TestStatusReadFailureIsNonFatal(t *testing.T) {
	spi := newMockSPI()
	sw, int1, _, rep := newTestSwitch(t, spi, MotionSwitchConfig{})

	spi.failRead[_INT_STATUS_INT1] = errors.New("bus fault")
	int1.fire()
	if done := sw.step(); done {
		t.Error("Loop terminated on transient read failure")
	}
	if len(rep.errs) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(rep.errs))
	}

	// Recovery: next edge with a healthy bus reads fine.
	delete(spi.failRead, _INT_STATUS_INT1)
	spi.regs[_INT_STATUS_INT1] = IntStatusAccelDrdy
	int1.fire()
	sw.step()
	if len(rep.samples) != 1 {
		t.Errorf("Expected recovery sample, got %d", len(rep.samples))
	}
}
