// Package sensor defines the capability contract shared by all rig sensor
// drivers and the fixed-capacity registry that owns them. Drivers wrap
// vendor measurement backends; the protocol layer never sees a bus.
package sensor

import "errors"

// ID identifies one sensor slot on the rig.
type ID uint8

const (
	IDNone ID = 0x00

	// IDVL53L0X is the time-of-flight ranging sensor.
	IDVL53L0X ID = 0x01

	// IDMLX90640 is the IR thermal array sensor.
	IDMLX90640 ID = 0x02
)

// MaxSensors bounds the registry. Slots are assigned at startup and never
// released.
const MaxSensors = 8

// Fixed wire widths for spec and result encodings (big-endian).
const (
	SpecWireSize   = 4
	ResultWireSize = 8
)

// Status is the outcome of one sensor test.
type Status uint8

const (
	// StatusPass means the measurement landed within tolerance.
	StatusPass Status = 0x00
	// StatusFailInvalid means the measurement completed but fell outside
	// tolerance, or the request was malformed.
	StatusFailInvalid Status = 0x01
	// StatusFailNoSpec means a test ran before a spec was supplied.
	StatusFailNoSpec Status = 0x02
	// StatusFailInit means initialization failed for a reason other than
	// bus presence (identity or calibration mismatch).
	StatusFailInit Status = 0x03
	// StatusFailNoAck means the device did not respond on the bus at all;
	// the host reads this as a wiring/presence problem.
	StatusFailNoAck Status = 0x04
	// StatusFailTimeout means the measurement did not complete in time.
	StatusFailTimeout Status = 0x05
	// StatusNotTested means the slot was empty or the driver missing.
	StatusNotTested Status = 0x06
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusFailInvalid:
		return "fail-invalid"
	case StatusFailNoSpec:
		return "fail-no-spec"
	case StatusFailInit:
		return "fail-init"
	case StatusFailNoAck:
		return "fail-no-ack"
	case StatusFailTimeout:
		return "fail-timeout"
	case StatusNotTested:
		return "not-tested"
	default:
		return "unknown"
	}
}

// Backend fault classification. Backends wrap these so drivers can map bus
// faults onto Status without knowing the transaction details.
var (
	ErrNoAck   = errors.New("sensor: device not acknowledging")
	ErrTimeout = errors.New("sensor: measurement timed out")
	ErrInit    = errors.New("sensor: device initialization failed")
)

// Spec is a host-supplied acceptance window. Exactly one variant exists per
// sensor type; the sealed marker keeps the active variant statically known
// at every read site.
type Spec interface {
	isSpec()
}

// Result is one completed measurement alongside the window it was judged
// against.
type Result interface {
	isResult()
}

// Driver is the uniform contract over heterogeneous sensors. Spec state
// lives on the driver between SetSpec and RunTest because the protocol is
// configure-once, test-repeatedly.
type Driver interface {
	ID() ID
	Name() string

	// Init brings the device up. It is idempotent: calling it while
	// already initialized is a no-op success.
	Init() error
	Deinit()

	// SetSpec stores the acceptance window. A spec of the wrong variant
	// is rejected.
	SetSpec(Spec) error
	Spec() (Spec, bool)
	HasSpec() bool

	// RunTest performs one measurement and judges it against the stored
	// spec. All failure modes are reported in the Status; the Result is
	// meaningful only for StatusPass and StatusFailInvalid.
	RunTest() (Status, Result)

	// Fixed-width big-endian codecs for the wire protocol.
	ParseSpec(b []byte) (Spec, error)
	SerializeSpec(s Spec) ([]byte, error)
	SerializeResult(r Result) []byte
}

var (
	ErrSpecVariant = errors.New("sensor: spec variant does not match driver")
	ErrSpecShort   = errors.New("sensor: spec bytes too short")
	ErrNoSpec      = errors.New("sensor: no spec configured")
)

// absDiff16 is the shared tolerance arithmetic: |measured - target| on
// values that may be signed on the wire.
func absDiff16(measured, target int32) uint16 {
	d := measured - target
	if d < 0 {
		d = -d
	}
	if d > 0xFFFF {
		d = 0xFFFF
	}
	return uint16(d)
}

// judge is the comparison rule common to every sensor type: pass iff the
// difference does not exceed the tolerance.
func judge(diff, tolerance uint16) Status {
	if diff > tolerance {
		return StatusFailInvalid
	}
	return StatusPass
}

// classifyInitErr maps a bring-up failure onto the status taxonomy,
// separating wiring problems from logic problems.
func classifyInitErr(err error) Status {
	if errors.Is(err, ErrNoAck) {
		return StatusFailNoAck
	}
	return StatusFailInit
}

// classifyMeasureErr maps a measurement failure onto the status taxonomy.
func classifyMeasureErr(err error) Status {
	if errors.Is(err, ErrNoAck) {
		return StatusFailNoAck
	}
	return StatusFailTimeout
}
