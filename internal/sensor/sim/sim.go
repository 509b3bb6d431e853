// Package sim provides simulated vendor backends for bench operation
// without hardware and for driver tests. Readings drift slightly around a
// base value; faults are scriptable per call site.
package sim

import (
	"math/rand"

	"github.com/danmuck/rigctl/internal/sensor"
)

// RangingBackend simulates a ToF device.
type RangingBackend struct {
	BaseMM   uint16
	JitterMM uint16

	// Fault hooks. Leaving them nil means the operation succeeds.
	ReadyErr   error
	InitErr    error
	MeasureErr error

	rng *rand.Rand
}

func NewRangingBackend(baseMM uint16) *RangingBackend {
	return &RangingBackend{
		BaseMM:   baseMM,
		JitterMM: 5,
		rng:      rand.New(rand.NewSource(int64(baseMM))),
	}
}

func (b *RangingBackend) Ready() error { return b.ReadyErr }
func (b *RangingBackend) Init() error  { return b.InitErr }

func (b *RangingBackend) Measure() (uint16, error) {
	if b.MeasureErr != nil {
		return 0, b.MeasureErr
	}
	if b.JitterMM == 0 {
		return b.BaseMM, nil
	}
	return b.BaseMM + uint16(b.rng.Intn(int(b.JitterMM)+1)), nil
}

// ThermalBackend simulates an IR array device. Temperatures are
// centi-degrees C.
type ThermalBackend struct {
	BaseCenti   int16
	JitterCenti int16

	ReadyErr   error
	InitErr    error
	MeasureErr error

	rng *rand.Rand
}

func NewThermalBackend(baseCenti int16) *ThermalBackend {
	return &ThermalBackend{
		BaseCenti:   baseCenti,
		JitterCenti: 25,
		rng:         rand.New(rand.NewSource(int64(baseCenti))),
	}
}

func (b *ThermalBackend) Ready() error { return b.ReadyErr }
func (b *ThermalBackend) Init() error  { return b.InitErr }

func (b *ThermalBackend) Measure() (int16, error) {
	if b.MeasureErr != nil {
		return 0, b.MeasureErr
	}
	if b.JitterCenti == 0 {
		return b.BaseCenti, nil
	}
	return b.BaseCenti + int16(b.rng.Intn(int(b.JitterCenti)+1)), nil
}

var _ sensor.RangingBackend = (*RangingBackend)(nil)
var _ sensor.ThermalBackend = (*ThermalBackend)(nil)
