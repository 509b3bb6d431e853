package runner

import (
	"encoding/binary"

	"github.com/danmuck/rigctl/internal/sensor"
)

// Entry is one sensor's outcome within a report.
type Entry struct {
	ID     sensor.ID
	Status sensor.Status
	Result sensor.Result
}

// Report aggregates one test run. Entries are ordered by registry ordinal
// (All mode) or hold the single tested sensor (Single mode). Slots with
// StatusNotTested count toward neither pass nor fail, so
// PassCount+FailCount <= SensorCount always holds.
type Report struct {
	SensorCount uint8
	PassCount   uint8
	FailCount   uint8
	Timestamp   uint32

	entries [sensor.MaxSensors]Entry
	n       int
}

// Entries returns the recorded outcomes in order.
func (r *Report) Entries() []Entry {
	return r.entries[:r.n]
}

func (r *Report) add(e Entry) {
	if r.n >= len(r.entries) {
		return
	}
	r.entries[r.n] = e
	r.n++
	switch e.Status {
	case sensor.StatusPass:
		r.PassCount++
	case sensor.StatusNotTested:
	default:
		r.FailCount++
	}
}

func (r *Report) reset() {
	*r = Report{}
}

// AllPassed reports whether every tested sensor passed.
func (r *Report) AllPassed() bool {
	return r.FailCount == 0 && r.PassCount == r.SensorCount
}

// Serialize encodes the report for the wire:
//
//	sensorCount(1) passCount(1) failCount(1) timestamp(4,BE)
//	then per entry: sensorId(1) status(1) resultBytes(8)
//
// Result bytes come from the owning driver's codec; entries without a
// usable result carry zeroes.
func (r *Report) Serialize(reg *sensor.Registry) []byte {
	out := make([]byte, 0, 7+r.n*(2+sensor.ResultWireSize))
	out = append(out, r.SensorCount, r.PassCount, r.FailCount)
	out = binary.BigEndian.AppendUint32(out, r.Timestamp)

	for _, e := range r.Entries() {
		out = append(out, byte(e.ID), byte(e.Status))
		if d, ok := reg.ByID(e.ID); ok && e.Result != nil {
			out = append(out, d.SerializeResult(e.Result)...)
		} else {
			out = append(out, make([]byte, sensor.ResultWireSize)...)
		}
	}
	return out
}
