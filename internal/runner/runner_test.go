package runner

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/sensor"
)

type scriptRanging struct {
	distance     uint16
	measureCalls int
}

func (s *scriptRanging) Ready() error { return nil }
func (s *scriptRanging) Init() error  { return nil }
func (s *scriptRanging) Measure() (uint16, error) {
	s.measureCalls++
	return s.distance, nil
}

type scriptThermal struct {
	temp         int16
	measureCalls int
}

func (s *scriptThermal) Ready() error { return nil }
func (s *scriptThermal) Init() error  { return nil }
func (s *scriptThermal) Measure() (int16, error) {
	s.measureCalls++
	return s.temp, nil
}

type fixture struct {
	reg     *sensor.Registry
	ranging *scriptRanging
	thermal *scriptThermal
	runner  *Runner
	nowMS   uint32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ranging: &scriptRanging{distance: 500},
		thermal: &scriptThermal{temp: 2500},
		nowMS:   1000,
	}
	f.reg = sensor.NewRegistry()
	rd := sensor.NewRangingDriver(f.ranging)
	td := sensor.NewThermalDriver(f.thermal)
	if err := rd.SetSpec(sensor.RangingSpec{TargetMM: 500, ToleranceMM: 50}); err != nil {
		t.Fatalf("set ranging spec: %v", err)
	}
	if err := td.SetSpec(sensor.ThermalSpec{TargetCenti: 2500, ToleranceCenti: 500}); err != nil {
		t.Fatalf("set thermal spec: %v", err)
	}
	if err := f.reg.Register(rd); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.reg.Register(td); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.runner = New(f.reg, func() uint32 { return f.nowMS }, zerolog.Nop())
	return f
}

func TestStartAllOneSensorPerTick(t *testing.T) {
	f := newFixture(t)

	if !f.runner.StartAll() {
		t.Fatalf("start all failed")
	}
	if f.runner.State() != StateRunning {
		t.Fatalf("state after start: %v", f.runner.State())
	}

	f.runner.Tick()
	if f.runner.State() != StateRunning {
		t.Fatalf("state after first tick: %v", f.runner.State())
	}
	if f.ranging.measureCalls != 1 || f.thermal.measureCalls != 0 {
		t.Fatalf("first tick touched wrong sensors: ranging=%d thermal=%d",
			f.ranging.measureCalls, f.thermal.measureCalls)
	}

	f.runner.Tick()
	if f.runner.State() != StateComplete {
		t.Fatalf("state after second tick: %v", f.runner.State())
	}
	if f.thermal.measureCalls != 1 {
		t.Fatalf("second tick thermal calls: %d", f.thermal.measureCalls)
	}

	report, ok := f.runner.Report()
	if !ok {
		t.Fatalf("report not available")
	}
	if report.SensorCount != 2 {
		t.Fatalf("sensor count: %d", report.SensorCount)
	}
	if report.PassCount+report.FailCount != 2 {
		t.Fatalf("pass+fail: %d", report.PassCount+report.FailCount)
	}
	if report.Timestamp != 1000 {
		t.Fatalf("timestamp: %d", report.Timestamp)
	}
}

func TestReportRetrievalIsOneShot(t *testing.T) {
	f := newFixture(t)
	f.runner.StartAll()
	f.runner.Tick()
	f.runner.Tick()

	if _, ok := f.runner.Report(); !ok {
		t.Fatalf("first retrieval failed")
	}
	if f.runner.State() != StateIdle {
		t.Fatalf("state after retrieval: %v", f.runner.State())
	}
	if _, ok := f.runner.Report(); ok {
		t.Fatalf("second retrieval succeeded")
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	f := newFixture(t)
	f.runner.StartAll()

	if f.runner.StartAll() {
		t.Fatalf("start all while running succeeded")
	}
	if f.runner.StartSingle(sensor.IDVL53L0X) {
		t.Fatalf("start single while running succeeded")
	}
	if f.ranging.measureCalls != 0 {
		t.Fatalf("rejected start ran a test")
	}
}

func TestStartSingleUnknownIDFails(t *testing.T) {
	f := newFixture(t)
	if f.runner.StartSingle(sensor.ID(0xFF)) {
		t.Fatalf("start with unknown id succeeded")
	}
	if f.runner.State() != StateIdle {
		t.Fatalf("state changed on rejected start: %v", f.runner.State())
	}
}

func TestStartSingleCompletesInOneTick(t *testing.T) {
	f := newFixture(t)
	if !f.runner.StartSingle(sensor.IDMLX90640) {
		t.Fatalf("start single failed")
	}

	f.runner.Tick()
	if f.runner.State() != StateComplete {
		t.Fatalf("state after tick: %v", f.runner.State())
	}
	if f.ranging.measureCalls != 0 {
		t.Fatalf("single run touched the other sensor")
	}

	report, ok := f.runner.Report()
	if !ok || report.SensorCount != 1 {
		t.Fatalf("report: ok=%v count=%d", ok, report.SensorCount)
	}
	entries := report.Entries()
	if len(entries) != 1 || entries[0].ID != sensor.IDMLX90640 {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[0].Status != sensor.StatusPass {
		t.Fatalf("status: %v", entries[0].Status)
	}
}

func TestTickOutsideRunningIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.runner.Tick()
	if f.runner.State() != StateIdle || f.ranging.measureCalls != 0 {
		t.Fatalf("idle tick had effects")
	}
}

func TestCancelDiscardsInProgressRun(t *testing.T) {
	f := newFixture(t)
	f.runner.StartAll()
	f.runner.Tick()

	f.runner.Cancel()
	if f.runner.State() != StateIdle {
		t.Fatalf("state after cancel: %v", f.runner.State())
	}
	if _, ok := f.runner.Report(); ok {
		t.Fatalf("report available after cancel")
	}
	if !f.runner.StartAll() {
		t.Fatalf("restart after cancel failed")
	}
}

func TestNoSpecSensorCountsAsFailure(t *testing.T) {
	reg := sensor.NewRegistry()
	back := &scriptRanging{distance: 500}
	reg.Register(sensor.NewRangingDriver(back)) // no spec set

	r := New(reg, func() uint32 { return 0 }, zerolog.Nop())
	r.StartAll()
	r.Tick()

	report, ok := r.Report()
	if !ok {
		t.Fatalf("report not available")
	}
	if report.PassCount != 0 || report.FailCount != 1 {
		t.Fatalf("counts: pass=%d fail=%d", report.PassCount, report.FailCount)
	}
	if report.Entries()[0].Status != sensor.StatusFailNoSpec {
		t.Fatalf("status: %v", report.Entries()[0].Status)
	}
	if back.measureCalls != 0 {
		t.Fatalf("no-spec test touched the bus")
	}
}

func TestSerializeReportLayout(t *testing.T) {
	f := newFixture(t)
	f.ranging.distance = 500
	f.thermal.temp = 2500
	f.nowMS = 0x01020304

	f.runner.StartAll()
	f.runner.Tick()
	f.runner.Tick()
	report, ok := f.runner.Report()
	if !ok {
		t.Fatalf("report not available")
	}

	b := report.Serialize(f.reg)
	wantHeader := []byte{2, 2, 0, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(b[:7], wantHeader) {
		t.Fatalf("header: % x want % x", b[:7], wantHeader)
	}
	if len(b) != 7+2*(2+sensor.ResultWireSize) {
		t.Fatalf("length: %d", len(b))
	}
	// First entry: ranging, pass, measured 500 against target 500.
	entry := b[7:]
	if entry[0] != byte(sensor.IDVL53L0X) || entry[1] != byte(sensor.StatusPass) {
		t.Fatalf("entry prefix: % x", entry[:2])
	}
	wantResult := []byte{0x01, 0xF4, 0x01, 0xF4, 0x00, 0x32, 0x00, 0x00}
	if !bytes.Equal(entry[2:10], wantResult) {
		t.Fatalf("ranging result: % x want % x", entry[2:10], wantResult)
	}
}
