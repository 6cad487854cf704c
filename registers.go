package bmi323

// --- BMI323 Registers/Commands/Bits ---
//
// All registers are 16-bit little-endian words. SPI reads return one dummy
// byte after the address before real data starts clocking out.

// BMI323 Register Addresses
const (
	_CHIP_ID    = 0x00
	_ERR_REG    = 0x01
	_STATUS     = 0x02
	_ACC_DATA_X = 0x03
	//_ACC_DATA_Y = 0x04
	//_ACC_DATA_Z = 0x05
	_GYR_DATA_X = 0x06
	//_GYR_DATA_Y = 0x07
	//_GYR_DATA_Z = 0x08
	_TEMP_DATA     = 0x09
	_SENSOR_TIME_0 = 0x0A
	_SENSOR_TIME_1 = 0x0B

	_INT_STATUS_INT1 = 0x0D // data-ready/feature status latched for pin INT1
	_INT_STATUS_INT2 = 0x0E // same layout, latched for pin INT2

	_FEATURE_IO0       = 0x10 // feature enable bits
	_FEATURE_IO1       = 0x11 // feature engine status/error
	_FEATURE_IO2       = 0x12
	_FEATURE_IO3       = 0x13
	_FEATURE_IO_STATUS = 0x14 // write 1 to commit FEATURE_IO writes

	_ACC_CONF     = 0x20
	_GYR_CONF     = 0x21
	_ALT_ACC_CONF = 0x28
	_ALT_GYR_CONF = 0x29
	_ALT_CONF     = 0x2A
	_ALT_STATUS   = 0x2B

	_IO_INT_CTRL = 0x38 // INT1/INT2 electrical configuration
	_INT_CONF    = 0x39
	_INT_MAP1    = 0x3A
	_INT_MAP2    = 0x3B

	_FEATURE_CTRL        = 0x40
	_FEATURE_DATA_ADDR   = 0x41
	_FEATURE_DATA_TX     = 0x42
	_FEATURE_DATA_STATUS = 0x43

	_CMD = 0x7E
)

// Command register codes
const (
	_CMD_SOFT_RESET = 0xDEAF
)

// ChipID is the value reported by the CHIP_ID register (low byte).
const ChipID = 0x43

// Interrupt Status Bits (INT_STATUS_INT1 / INT_STATUS_INT2)
const (
	IntStatusNoMotion      uint16 = 1 << 0
	IntStatusAnyMotion     uint16 = 1 << 1
	IntStatusFlat          uint16 = 1 << 2
	IntStatusOrientation   uint16 = 1 << 3
	IntStatusStepDetector  uint16 = 1 << 4
	IntStatusStepCounter   uint16 = 1 << 5
	IntStatusSigMotion     uint16 = 1 << 6
	IntStatusTilt          uint16 = 1 << 7
	IntStatusTap           uint16 = 1 << 8
	IntStatusErr           uint16 = 1 << 10
	IntStatusTempDrdy      uint16 = 1 << 11
	IntStatusGyroDrdy      uint16 = 1 << 12
	IntStatusAccelDrdy     uint16 = 1 << 13
	IntStatusFIFOWatermark uint16 = 1 << 14
	IntStatusFIFOFull      uint16 = 1 << 15
)

// FEATURE_IO0 feature enable bits
const (
	_FEAT_NO_MOTION_X_EN  = 1 << 0
	_FEAT_NO_MOTION_Y_EN  = 1 << 1
	_FEAT_NO_MOTION_Z_EN  = 1 << 2
	_FEAT_ANY_MOTION_X_EN = 1 << 3
	_FEAT_ANY_MOTION_Y_EN = 1 << 4
	_FEAT_ANY_MOTION_Z_EN = 1 << 5
)

// Feature engine states (FEATURE_IO1 low nibble)
const (
	_FEAT_ENGINE_MASK      = 0x000F
	_FEAT_ENGINE_ACTIVATED = 0x0001
)

// Feature engine startup values
const (
	_FEAT_IO2_STARTUP   = 0x012C
	_FEAT_IO_STATUS_SET = 0x0001
	_FEAT_CTRL_ENABLE   = 0x0001
)

// Feature engine extended-memory base addresses, accessed through the
// FEATURE_DATA_ADDR/FEATURE_DATA_TX window.
const (
	_BASE_ADDR_ANY_MOTION = 0x05
	_BASE_ADDR_NO_MOTION  = 0x08
	_BASE_ADDR_ALT_CONFIG = 0x26
)

// FEATURE_DATA_STATUS bits
const (
	_FEAT_DATA_TX_READY = 1 << 1
)

// ACC_CONF / GYR_CONF / ALT_*_CONF field layout
const (
	_CONF_ODR_MASK    = 0x000F
	_CONF_RANGE_MASK  = 0x0070
	_CONF_RANGE_SHIFT = 4
	_CONF_AVG_MASK    = 0x0700
	_CONF_AVG_SHIFT   = 8
	_CONF_MODE_MASK   = 0x7000
	_CONF_MODE_SHIFT  = 12
)

// ALT_CONF bits
const (
	_ALT_ACC_EN        = 1 << 0
	_ALT_GYR_EN        = 1 << 4
	_ALT_RST_ON_SWITCH = 1 << 8
)

// ALT_STATUS bits
const (
	_ALT_STATUS_ACC = 1 << 0
	_ALT_STATUS_GYR = 1 << 1
)

// IO_INT_CTRL bits (INT1 in the low byte, INT2 in the high byte)
const (
	_INT1_LVL       = 1 << 0
	_INT1_OD        = 1 << 1
	_INT1_OUTPUT_EN = 1 << 2
	_INT2_LVL       = 1 << 8
	_INT2_OD        = 1 << 9
	_INT2_OUTPUT_EN = 1 << 10
)

// INT_MAP1/INT_MAP2 two-bit routing fields
const (
	_MAP_NO_MOTION_SHIFT  = 0 // INT_MAP1
	_MAP_ANY_MOTION_SHIFT = 2
	_MAP_FLAT_SHIFT       = 4
	_MAP_ORIENT_SHIFT     = 6
	_MAP_STEP_DET_SHIFT   = 8
	_MAP_STEP_CNT_SHIFT   = 10
	_MAP_SIG_MOTION_SHIFT = 12
	_MAP_TILT_SHIFT       = 14

	_MAP_TAP_SHIFT       = 0 // INT_MAP2
	_MAP_ERR_SHIFT       = 4
	_MAP_TEMP_DRDY_SHIFT = 6
	_MAP_GYR_DRDY_SHIFT  = 8
	_MAP_ACC_DRDY_SHIFT  = 10
	_MAP_FWM_SHIFT       = 12
	_MAP_FFULL_SHIFT     = 14
)

type (
	ODR       uint16
	AccelMode uint16
	GyroMode  uint16
	Average   uint16
)

const (
	// ODR0Hz78 represents an output data rate of 0.78125Hz
	ODR0Hz78 ODR = 0x01
	ODR1Hz56 ODR = 0x02
	ODR3Hz12 ODR = 0x03
	ODR6Hz25 ODR = 0x04
	ODR12Hz5 ODR = 0x05
	ODR25Hz  ODR = 0x06
	ODR50Hz  ODR = 0x07
	ODR100Hz ODR = 0x08
	ODR200Hz ODR = 0x09
	ODR400Hz ODR = 0x0A
	ODR800Hz ODR = 0x0B
	ODR1k6Hz ODR = 0x0C
	ODR3k2Hz ODR = 0x0D
	ODR6k4Hz ODR = 0x0E
)

func (o ODR) String() string {
	switch o {
	case ODR0Hz78:
		return "0.78Hz"
	case ODR1Hz56:
		return "1.56Hz"
	case ODR3Hz12:
		return "3.12Hz"
	case ODR6Hz25:
		return "6.25Hz"
	case ODR12Hz5:
		return "12.5Hz"
	case ODR25Hz:
		return "25Hz"
	case ODR50Hz:
		return "50Hz"
	case ODR100Hz:
		return "100Hz"
	case ODR200Hz:
		return "200Hz"
	case ODR400Hz:
		return "400Hz"
	case ODR800Hz:
		return "800Hz"
	case ODR1k6Hz:
		return "1600Hz"
	case ODR3k2Hz:
		return "3200Hz"
	case ODR6k4Hz:
		return "6400Hz"
	default:
		return "unknown"
	}
}

const (
	// AccelModeDisable powers the accelerometer down
	AccelModeDisable AccelMode = 0x00
	// AccelModeLowPower enables duty-cycled sampling
	AccelModeLowPower AccelMode = 0x03
	// AccelModeNormal enables continuous sampling
	AccelModeNormal AccelMode = 0x04
	// AccelModeHighPerf enables continuous sampling without duty cycling the analog frontend
	AccelModeHighPerf AccelMode = 0x07
)

func (m AccelMode) String() string {
	switch m {
	case AccelModeDisable:
		return "disabled"
	case AccelModeLowPower:
		return "low-power"
	case AccelModeNormal:
		return "normal"
	case AccelModeHighPerf:
		return "high-performance"
	default:
		return "unknown"
	}
}

const (
	GyroModeDisable  GyroMode = 0x00
	GyroModeSuspend  GyroMode = 0x01
	GyroModeLowPower GyroMode = 0x03
	GyroModeNormal   GyroMode = 0x04
	GyroModeHighPerf GyroMode = 0x07
)

func (m GyroMode) String() string {
	switch m {
	case GyroModeDisable:
		return "disabled"
	case GyroModeSuspend:
		return "suspend"
	case GyroModeLowPower:
		return "low-power"
	case GyroModeNormal:
		return "normal"
	case GyroModeHighPerf:
		return "high-performance"
	default:
		return "unknown"
	}
}

const (
	Avg1  Average = 0x00
	Avg2  Average = 0x01
	Avg4  Average = 0x02
	Avg8  Average = 0x03
	Avg16 Average = 0x04
	Avg32 Average = 0x05
	Avg64 Average = 0x06
)

func (a Average) String() string {
	switch a {
	case Avg1:
		return "no averaging"
	case Avg2:
		return "2 samples"
	case Avg4:
		return "4 samples"
	case Avg8:
		return "8 samples"
	case Avg16:
		return "16 samples"
	case Avg32:
		return "32 samples"
	case Avg64:
		return "64 samples"
	default:
		return "unknown"
	}
}
