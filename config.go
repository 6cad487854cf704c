package bmi323

import "fmt"

// ConfigKind identifies one of the seven configuration blocks of the chip.
type ConfigKind uint8

const (
	KindAccel ConfigKind = iota
	KindAnyMotion
	KindNoMotion
	KindAltAuto
	KindAltAccel
	KindGyro
	KindAltGyro
)

func (k ConfigKind) String() string {
	switch k {
	case KindAccel:
		return "accel"
	case KindAnyMotion:
		return "any-motion"
	case KindNoMotion:
		return "no-motion"
	case KindAltAuto:
		return "alternate auto-config"
	case KindAltAccel:
		return "alternate accel"
	case KindGyro:
		return "gyro"
	case KindAltGyro:
		return "alternate gyro"
	default:
		return "unknown"
	}
}

// SensorConfig is one typed configuration block. Concrete types are
// AccelConfig, GyroConfig, AnyMotionConfig, NoMotionConfig, AltAutoConfig,
// AltAccelConfig and AltGyroConfig.
type SensorConfig interface {
	Kind() ConfigKind
}

// AccelConfig is the user accelerometer configuration (ACC_CONF).
type AccelConfig struct {
	Mode    AccelMode
	ODR     ODR
	Range   uint16 // 0=2g, 1=4g, 2=8g, 3=16g
	Average Average
}

func (AccelConfig) Kind() ConfigKind { return KindAccel }

// GyroConfig is the user gyroscope configuration (GYR_CONF).
type GyroConfig struct {
	Mode    GyroMode
	ODR     ODR
	Range   uint16 // 0=125dps .. 4=2000dps
	Average Average
}

func (GyroConfig) Kind() ConfigKind { return KindGyro }

// AnyMotionConfig parameterizes the any-motion detector. Threshold is in
// 1.953mg/LSB, duration in 20ms/LSB.
type AnyMotionConfig struct {
	Threshold  uint16
	Hysteresis uint16
	Duration   uint16
}

func (AnyMotionConfig) Kind() ConfigKind { return KindAnyMotion }

// NoMotionConfig parameterizes the no-motion detector, symmetric to
// AnyMotionConfig.
type NoMotionConfig struct {
	Threshold  uint16
	Hysteresis uint16
	Duration   uint16
}

func (NoMotionConfig) Kind() ConfigKind { return KindNoMotion }

// SwitchSource selects which motion detector drives a configuration switch.
type SwitchSource uint8

const (
	switchUnset SwitchSource = iota
	SwitchAnyMotion
	SwitchNoMotion
)

func (s SwitchSource) String() string {
	switch s {
	case SwitchAnyMotion:
		return "any-motion"
	case SwitchNoMotion:
		return "no-motion"
	default:
		return "unset"
	}
}

// AltAutoConfig assigns the two motion detectors to the alternate and user
// switch triggers. Exactly one of any-motion/no-motion can drive the switch
// into the alternate configuration; the other one drives the switch back to
// the user configuration.
type AltAutoConfig struct {
	AltSwitchSource  SwitchSource
	UserSwitchSource SwitchSource
}

func (AltAutoConfig) Kind() ConfigKind { return KindAltAuto }

// Validate rejects selector assignments the hardware cannot express.
func (c AltAutoConfig) Validate() error {
	if c.AltSwitchSource == switchUnset || c.UserSwitchSource == switchUnset {
		return fmt.Errorf("%w: both switch sources must be assigned", ErrInvalidConfig)
	}
	if c.AltSwitchSource == c.UserSwitchSource {
		return fmt.Errorf("%w: %s cannot drive both the alternate and the user switch",
			ErrInvalidConfig, c.AltSwitchSource)
	}
	return nil
}

// AltAccelConfig is the alternate accelerometer configuration
// (ALT_ACC_CONF), active while the alternate switch source is asserted.
type AltAccelConfig struct {
	Mode    AccelMode
	ODR     ODR
	Average Average
}

func (AltAccelConfig) Kind() ConfigKind { return KindAltAccel }

// AltGyroConfig is the alternate gyroscope configuration (ALT_GYR_CONF).
type AltGyroConfig struct {
	Mode    GyroMode
	ODR     ODR
	Average Average
}

func (AltGyroConfig) Kind() ConfigKind { return KindAltGyro }

// --- register codecs ---

func (c AccelConfig) encode() uint16 {
	return uint16(c.ODR)&_CONF_ODR_MASK |
		c.Range<<_CONF_RANGE_SHIFT&_CONF_RANGE_MASK |
		uint16(c.Average)<<_CONF_AVG_SHIFT&_CONF_AVG_MASK |
		uint16(c.Mode)<<_CONF_MODE_SHIFT&_CONF_MODE_MASK
}

func decodeAccelConf(w uint16) AccelConfig {
	return AccelConfig{
		Mode:    AccelMode(w & _CONF_MODE_MASK >> _CONF_MODE_SHIFT),
		ODR:     ODR(w & _CONF_ODR_MASK),
		Range:   w & _CONF_RANGE_MASK >> _CONF_RANGE_SHIFT,
		Average: Average(w & _CONF_AVG_MASK >> _CONF_AVG_SHIFT),
	}
}

func (c GyroConfig) encode() uint16 {
	return uint16(c.ODR)&_CONF_ODR_MASK |
		c.Range<<_CONF_RANGE_SHIFT&_CONF_RANGE_MASK |
		uint16(c.Average)<<_CONF_AVG_SHIFT&_CONF_AVG_MASK |
		uint16(c.Mode)<<_CONF_MODE_SHIFT&_CONF_MODE_MASK
}

func decodeGyroConf(w uint16) GyroConfig {
	return GyroConfig{
		Mode:    GyroMode(w & _CONF_MODE_MASK >> _CONF_MODE_SHIFT),
		ODR:     ODR(w & _CONF_ODR_MASK),
		Range:   w & _CONF_RANGE_MASK >> _CONF_RANGE_SHIFT,
		Average: Average(w & _CONF_AVG_MASK >> _CONF_AVG_SHIFT),
	}
}

func (c AltAccelConfig) encode() uint16 {
	return uint16(c.ODR)&_CONF_ODR_MASK |
		uint16(c.Average)<<_CONF_AVG_SHIFT&_CONF_AVG_MASK |
		uint16(c.Mode)<<_CONF_MODE_SHIFT&_CONF_MODE_MASK
}

func decodeAltAccelConf(w uint16) AltAccelConfig {
	return AltAccelConfig{
		Mode:    AccelMode(w & _CONF_MODE_MASK >> _CONF_MODE_SHIFT),
		ODR:     ODR(w & _CONF_ODR_MASK),
		Average: Average(w & _CONF_AVG_MASK >> _CONF_AVG_SHIFT),
	}
}

func (c AltGyroConfig) encode() uint16 {
	return uint16(c.ODR)&_CONF_ODR_MASK |
		uint16(c.Average)<<_CONF_AVG_SHIFT&_CONF_AVG_MASK |
		uint16(c.Mode)<<_CONF_MODE_SHIFT&_CONF_MODE_MASK
}

func decodeAltGyroConf(w uint16) AltGyroConfig {
	return AltGyroConfig{
		Mode:    GyroMode(w & _CONF_MODE_MASK >> _CONF_MODE_SHIFT),
		ODR:     ODR(w & _CONF_ODR_MASK),
		Average: Average(w & _CONF_AVG_MASK >> _CONF_AVG_SHIFT),
	}
}

// Motion detector blocks live in feature engine memory as three words:
// threshold, hysteresis, duration. Reserved high bits are masked off.

const (
	_MOTION_THRESHOLD_MASK  = 0x0FFF
	_MOTION_HYSTERESIS_MASK = 0x03FF
	_MOTION_DURATION_MASK   = 0x1FFF
	_MOTION_BLOCK_WORDS     = 3
)

func encodeMotionBlock(threshold, hysteresis, duration uint16) [3]uint16 {
	return [3]uint16{
		threshold & _MOTION_THRESHOLD_MASK,
		hysteresis & _MOTION_HYSTERESIS_MASK,
		duration & _MOTION_DURATION_MASK,
	}
}

func decodeMotionBlock(w [3]uint16) (threshold, hysteresis, duration uint16) {
	return w[0] & _MOTION_THRESHOLD_MASK,
		w[1] & _MOTION_HYSTERESIS_MASK,
		w[2] & _MOTION_DURATION_MASK
}

// Alternate auto-config selector: one feature engine word, user switch
// source in the low nibble, alternate switch source in the next.

const (
	_ALT_SRC_ANY_MOTION = 0x1
	_ALT_SRC_NO_MOTION  = 0x2
)

func (c AltAutoConfig) encode() uint16 {
	return uint16(srcToBits(c.UserSwitchSource)) |
		uint16(srcToBits(c.AltSwitchSource))<<4
}

func decodeAltAutoConf(w uint16) AltAutoConfig {
	return AltAutoConfig{
		UserSwitchSource: bitsToSrc(uint8(w & 0x0F)),
		AltSwitchSource:  bitsToSrc(uint8(w >> 4 & 0x0F)),
	}
}

func srcToBits(s SwitchSource) uint8 {
	switch s {
	case SwitchAnyMotion:
		return _ALT_SRC_ANY_MOTION
	case SwitchNoMotion:
		return _ALT_SRC_NO_MOTION
	default:
		return 0
	}
}

func bitsToSrc(b uint8) SwitchSource {
	switch b {
	case _ALT_SRC_ANY_MOTION:
		return SwitchAnyMotion
	case _ALT_SRC_NO_MOTION:
		return SwitchNoMotion
	default:
		return switchUnset
	}
}
