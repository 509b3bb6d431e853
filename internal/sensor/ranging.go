package sensor

import "encoding/binary"

// RangingSpec is the acceptance window for the ToF distance sensor.
// Distances are millimeters.
type RangingSpec struct {
	TargetMM    uint16
	ToleranceMM uint16
}

func (RangingSpec) isSpec() {}

// RangingResult is one judged distance measurement.
type RangingResult struct {
	MeasuredMM  uint16
	TargetMM    uint16
	ToleranceMM uint16
	DiffMM      uint16
}

func (RangingResult) isResult() {}

// RangingBackend is the vendor-opaque side of the ToF driver. Ready probes
// bus presence; Init runs the vendor bring-up and calibration; Measure
// performs one ranging transaction. All three may block up to the bus
// timeout configured at construction.
type RangingBackend interface {
	Ready() error
	Init() error
	Measure() (uint16, error)
}

// RangingDriver exposes a VL53L0X-style ToF sensor through the Driver
// contract.
type RangingDriver struct {
	backend RangingBackend

	spec        RangingSpec
	specSet     bool
	initialized bool
}

func NewRangingDriver(backend RangingBackend) *RangingDriver {
	return &RangingDriver{backend: backend}
}

func (d *RangingDriver) ID() ID       { return IDVL53L0X }
func (d *RangingDriver) Name() string { return "VL53L0X" }

func (d *RangingDriver) Init() error {
	if d.initialized {
		return nil
	}
	if err := d.backend.Ready(); err != nil {
		return err
	}
	if err := d.backend.Init(); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

func (d *RangingDriver) Deinit() {
	d.initialized = false
}

func (d *RangingDriver) SetSpec(s Spec) error {
	rs, ok := s.(RangingSpec)
	if !ok {
		return ErrSpecVariant
	}
	d.spec = rs
	d.specSet = true
	return nil
}

func (d *RangingDriver) Spec() (Spec, bool) {
	if !d.specSet {
		return nil, false
	}
	return d.spec, true
}

func (d *RangingDriver) HasSpec() bool {
	return d.specSet
}

func (d *RangingDriver) RunTest() (Status, Result) {
	if !d.specSet {
		return StatusFailNoSpec, nil
	}
	if !d.initialized {
		if err := d.Init(); err != nil {
			return classifyInitErr(err), nil
		}
	}

	measured, err := d.backend.Measure()
	if err != nil {
		return classifyMeasureErr(err), nil
	}

	res := RangingResult{
		MeasuredMM:  measured,
		TargetMM:    d.spec.TargetMM,
		ToleranceMM: d.spec.ToleranceMM,
		DiffMM:      absDiff16(int32(measured), int32(d.spec.TargetMM)),
	}
	return judge(res.DiffMM, res.ToleranceMM), res
}

func (d *RangingDriver) ParseSpec(b []byte) (Spec, error) {
	if len(b) < SpecWireSize {
		return nil, ErrSpecShort
	}
	return RangingSpec{
		TargetMM:    binary.BigEndian.Uint16(b[0:2]),
		ToleranceMM: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

func (d *RangingDriver) SerializeSpec(s Spec) ([]byte, error) {
	rs, ok := s.(RangingSpec)
	if !ok {
		return nil, ErrSpecVariant
	}
	out := make([]byte, SpecWireSize)
	binary.BigEndian.PutUint16(out[0:2], rs.TargetMM)
	binary.BigEndian.PutUint16(out[2:4], rs.ToleranceMM)
	return out, nil
}

func (d *RangingDriver) SerializeResult(r Result) []byte {
	out := make([]byte, ResultWireSize)
	rr, ok := r.(RangingResult)
	if !ok {
		return out
	}
	binary.BigEndian.PutUint16(out[0:2], rr.MeasuredMM)
	binary.BigEndian.PutUint16(out[2:4], rr.TargetMM)
	binary.BigEndian.PutUint16(out[4:6], rr.ToleranceMM)
	binary.BigEndian.PutUint16(out[6:8], rr.DiffMM)
	return out
}
