package bmi323

import (
	"errors"
	"reflect"
	"testing"
)

func TestAltAutoConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  AltAutoConfig
		ok   bool
	}{
		{"no-motion switches to alternate", AltAutoConfig{AltSwitchSource: SwitchNoMotion, UserSwitchSource: SwitchAnyMotion}, true},
		{"any-motion switches to alternate", AltAutoConfig{AltSwitchSource: SwitchAnyMotion, UserSwitchSource: SwitchNoMotion}, true},
		{"same source both sides", AltAutoConfig{AltSwitchSource: SwitchAnyMotion, UserSwitchSource: SwitchAnyMotion}, false},
		{"alternate side unset", AltAutoConfig{UserSwitchSource: SwitchAnyMotion}, false},
		{"both unset", AltAutoConfig{}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.ok && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !c.ok {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestSetConfigsRejectsInvalidSelector(t *testing.T) {
	spi := newMockSPI()
	dev, _, _ := newTestDevice(t, spi)

	err := dev.SetConfigs(AltAutoConfig{
		AltSwitchSource:  SwitchNoMotion,
		UserSwitchSource: SwitchNoMotion,
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

// TestConfigRoundTrip pushes all seven configuration blocks and reads them
// back through the device, expecting field-for-field equality.
func TestConfigRoundTrip(t *testing.T) {
	spi := newMockSPI()
	dev, _, _ := newTestDevice(t, spi)

	blocks := []SensorConfig{
		AccelConfig{Mode: AccelModeNormal, ODR: ODR100Hz, Range: 1, Average: Avg2},
		AnyMotionConfig{Threshold: 9, Hysteresis: 9, Duration: 9},
		NoMotionConfig{Threshold: 8, Hysteresis: 9, Duration: 9},
		AltAutoConfig{AltSwitchSource: SwitchNoMotion, UserSwitchSource: SwitchAnyMotion},
		AltAccelConfig{Mode: AccelModeNormal, ODR: ODR400Hz, Average: Avg4},
		GyroConfig{Mode: GyroModeNormal, ODR: ODR100Hz, Range: 3, Average: Avg1},
		AltGyroConfig{Mode: GyroModeNormal, ODR: ODR400Hz, Average: Avg4},
	}

	if err := dev.SetConfigs(blocks...); err != nil {
		t.Fatalf("SetConfigs failed: %v", err)
	}

	got, err := dev.GetConfigs(
		KindAccel, KindAnyMotion, KindNoMotion, KindAltAuto,
		KindAltAccel, KindGyro, KindAltGyro,
	)
	if err != nil {
		t.Fatalf("GetConfigs failed: %v", err)
	}
	if len(got) != len(blocks) {
		t.Fatalf("Expected %d blocks, got %d", len(blocks), len(got))
	}

	for i, want := range blocks {
		if !reflect.DeepEqual(got[i], want) {
			t.Errorf("Block %s: wrote %+v, read %+v", want.Kind(), want, got[i])
		}
	}
}

func TestGetConfigsFailsFast(t *testing.T) {
	spi := newMockSPI()
	dev, _, _ := newTestDevice(t, spi)

	readErr := errors.New("bus fault")
	spi.failRead[_GYR_CONF] = readErr

	_, err := dev.GetConfigs(KindAccel, KindGyro, KindAltGyro)
	if !errors.Is(err, readErr) {
		t.Fatalf("Expected wrapped bus fault, got %v", err)
	}
}
