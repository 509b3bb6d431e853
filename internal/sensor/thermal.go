package sensor

import "encoding/binary"

// ThermalSpec is the acceptance window for the IR thermal array.
// Temperatures are centi-degrees Celsius (2500 = 25.00 C), signed.
type ThermalSpec struct {
	TargetCenti    int16
	ToleranceCenti uint16
}

func (ThermalSpec) isSpec() {}

// ThermalResult is one judged thermal measurement. The judged value is the
// hottest pixel in the array frame.
type ThermalResult struct {
	MaxTempCenti   int16
	TargetCenti    int16
	ToleranceCenti uint16
	DiffCenti      uint16
}

func (ThermalResult) isResult() {}

// ThermalBackend is the vendor-opaque side of the thermal driver. Measure
// returns the maximum pixel temperature of one array frame in
// centi-degrees C.
type ThermalBackend interface {
	Ready() error
	Init() error
	Measure() (int16, error)
}

// ThermalDriver exposes an MLX90640-style IR array through the Driver
// contract.
type ThermalDriver struct {
	backend ThermalBackend

	spec        ThermalSpec
	specSet     bool
	initialized bool
}

func NewThermalDriver(backend ThermalBackend) *ThermalDriver {
	return &ThermalDriver{backend: backend}
}

func (d *ThermalDriver) ID() ID       { return IDMLX90640 }
func (d *ThermalDriver) Name() string { return "MLX90640" }

func (d *ThermalDriver) Init() error {
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

func (d *ThermalDriver) Deinit() {
	d.initialized = false
}

func (d *ThermalDriver) SetSpec(s Spec) error {
	ts, ok := s.(ThermalSpec)
	if !ok {
		return ErrSpecVariant
	}
	d.spec = ts
	d.specSet = true
	return nil
}

func (d *ThermalDriver) Spec() (Spec, bool) {
	if !d.specSet {
		return nil, false
	}
	return d.spec, true
}

func (d *ThermalDriver) HasSpec() bool {
	return d.specSet
}

func (d *ThermalDriver) RunTest() (Status, Result) {
	if !d.specSet {
		return StatusFailNoSpec, nil
	}
	if !d.initialized {
		if err := d.Init(); err != nil {
			return classifyInitErr(err), nil
		}
	}

	maxTemp, err := d.backend.Measure()
	if err != nil {
		return classifyMeasureErr(err), nil
	}

	res := ThermalResult{
		MaxTempCenti:   maxTemp,
		TargetCenti:    d.spec.TargetCenti,
		ToleranceCenti: d.spec.ToleranceCenti,
		DiffCenti:      absDiff16(int32(maxTemp), int32(d.spec.TargetCenti)),
	}
	return judge(res.DiffCenti, res.ToleranceCenti), res
}

func (d *ThermalDriver) ParseSpec(b []byte) (Spec, error) {
	if len(b) < SpecWireSize {
		return nil, ErrSpecShort
	}
	return ThermalSpec{
		TargetCenti:    int16(binary.BigEndian.Uint16(b[0:2])),
		ToleranceCenti: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

func (d *ThermalDriver) SerializeSpec(s Spec) ([]byte, error) {
	ts, ok := s.(ThermalSpec)
	if !ok {
		return nil, ErrSpecVariant
	}
	out := make([]byte, SpecWireSize)
	binary.BigEndian.PutUint16(out[0:2], uint16(ts.TargetCenti))
	binary.BigEndian.PutUint16(out[2:4], ts.ToleranceCenti)
	return out, nil
}

func (d *ThermalDriver) SerializeResult(r Result) []byte {
	out := make([]byte, ResultWireSize)
	tr, ok := r.(ThermalResult)
	if !ok {
		return out
	}
	binary.BigEndian.PutUint16(out[0:2], uint16(tr.MaxTempCenti))
	binary.BigEndian.PutUint16(out[2:4], uint16(tr.TargetCenti))
	binary.BigEndian.PutUint16(out[4:6], tr.ToleranceCenti)
	binary.BigEndian.PutUint16(out[6:8], tr.DiffCenti)
	return out
}
