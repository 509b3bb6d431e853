package protocol

import (
	"bytes"
	"testing"

	"github.com/danmuck/rigctl/internal/protocol/frame"
	"github.com/danmuck/rigctl/internal/runner"
	"github.com/danmuck/rigctl/internal/sensor"
	"github.com/danmuck/rigctl/internal/testutil/testlog"
)

type okRanging struct{ distance uint16 }

func (b *okRanging) Ready() error             { return nil }
func (b *okRanging) Init() error              { return nil }
func (b *okRanging) Measure() (uint16, error) { return b.distance, nil }

type okThermal struct{ temp int16 }

func (b *okThermal) Ready() error            { return nil }
func (b *okThermal) Init() error             { return nil }
func (b *okThermal) Measure() (int16, error) { return b.temp, nil }

func newTestDispatcher(t *testing.T) (*Dispatcher, *runner.Runner, *sensor.Registry) {
	t.Helper()
	log := testlog.Start(t)

	reg := sensor.NewRegistry()
	if err := reg.Register(sensor.NewRangingDriver(&okRanging{distance: 500})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(sensor.NewThermalDriver(&okThermal{temp: 2500})); err != nil {
		t.Fatalf("register: %v", err)
	}
	run := runner.New(reg, func() uint32 { return 42 }, log)
	return NewDispatcher(reg, run, log), run, reg
}

func expectNak(t *testing.T, resp frame.Frame, code ErrorCode) {
	t.Helper()
	if resp.Cmd != RespNak {
		t.Fatalf("expected NAK, got cmd %#02x", resp.Cmd)
	}
	if resp.Len() != 1 || ErrorCode(resp.Payload()[0]) != code {
		t.Fatalf("NAK code: got % x want %#02x", resp.Payload(), byte(code))
	}
}

func TestPingReturnsVersion(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	resp, send := d.Process(frame.New(CmdPing))
	if !send {
		t.Fatalf("ping yielded no response")
	}
	if resp.Cmd != RespPong {
		t.Fatalf("cmd: %#02x", resp.Cmd)
	}
	if !bytes.Equal(resp.Payload(), []byte{VersionMajor, VersionMinor, VersionPatch}) {
		t.Fatalf("version payload: % x", resp.Payload())
	}
}

func TestUnknownCommandYieldsNak(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	resp, send := d.Process(frame.New(0xAA))
	if !send {
		t.Fatalf("expected NAK response")
	}
	expectNak(t, resp, ErrCodeUnknownCmd)
}

func TestGetSensorListLayout(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	resp, _ := d.Process(frame.New(CmdGetSensorList))
	if resp.Cmd != RespSensorList {
		t.Fatalf("cmd: %#02x", resp.Cmd)
	}
	p := resp.Payload()
	if p[0] != 2 {
		t.Fatalf("count: %d", p[0])
	}
	// First entry: VL53L0X.
	if p[1] != byte(sensor.IDVL53L0X) || p[2] != 7 || string(p[3:10]) != "VL53L0X" {
		t.Fatalf("first entry: % x", p[1:10])
	}
	// Second entry: MLX90640.
	if p[10] != byte(sensor.IDMLX90640) || p[11] != 8 || string(p[12:20]) != "MLX90640" {
		t.Fatalf("second entry: % x", p[10:20])
	}
}

func TestSetGetSpecRoundTrip(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	req := frame.New(CmdSetSpec)
	req.AddByte(byte(sensor.IDVL53L0X))
	req.AddU16(500)
	req.AddU16(50)
	resp, _ := d.Process(req)
	if resp.Cmd != RespAck || resp.Payload()[0] != CmdSetSpec {
		t.Fatalf("set-spec response: cmd=%#02x payload=% x", resp.Cmd, resp.Payload())
	}

	get := frame.New(CmdGetSpec)
	get.AddByte(byte(sensor.IDVL53L0X))
	resp, _ = d.Process(get)
	if resp.Cmd != RespSpecData {
		t.Fatalf("get-spec response: %#02x", resp.Cmd)
	}
	want := []byte{byte(sensor.IDVL53L0X), 0x01, 0xF4, 0x00, 0x32}
	if !bytes.Equal(resp.Payload(), want) {
		t.Fatalf("spec payload: % x want % x", resp.Payload(), want)
	}
}

func TestSetSpecInvalidSensorID(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	req := frame.New(CmdSetSpec)
	req.AddByte(0xFF)
	req.AddU16(100)
	req.AddU16(10)
	resp, _ := d.Process(req)
	expectNak(t, resp, ErrCodeInvalidSensorID)
}

func TestSetSpecShortPayload(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	req := frame.New(CmdSetSpec)
	req.AddByte(byte(sensor.IDMLX90640)) // spec bytes missing
	resp, _ := d.Process(req)
	expectNak(t, resp, ErrCodeInvalidPayload)
}

func TestGetSpecBeforeSetYieldsNak(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	req := frame.New(CmdGetSpec)
	req.AddByte(byte(sensor.IDMLX90640))
	resp, _ := d.Process(req)
	expectNak(t, resp, ErrCodeNoSpec)
}

func TestTestSingleAcknowledgesAndStarts(t *testing.T) {
	d, run, _ := newTestDispatcher(t)

	req := frame.New(CmdTestSingle)
	req.AddByte(byte(sensor.IDVL53L0X))
	resp, _ := d.Process(req)
	if resp.Cmd != RespAck || resp.Payload()[0] != CmdTestSingle {
		t.Fatalf("response: cmd=%#02x payload=% x", resp.Cmd, resp.Payload())
	}
	if run.State() != runner.StateRunning {
		t.Fatalf("runner state: %v", run.State())
	}
}

func TestTestSingleInvalidID(t *testing.T) {
	d, run, _ := newTestDispatcher(t)

	req := frame.New(CmdTestSingle)
	req.AddByte(0x7E)
	resp, _ := d.Process(req)
	expectNak(t, resp, ErrCodeInvalidSensorID)
	if run.State() != runner.StateIdle {
		t.Fatalf("runner started on invalid id")
	}
}

func TestTestAllWhileRunningYieldsNak(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	resp, _ := d.Process(frame.New(CmdTestAll))
	if resp.Cmd != RespAck {
		t.Fatalf("first test-all: %#02x", resp.Cmd)
	}
	resp, _ = d.Process(frame.New(CmdTestAll))
	expectNak(t, resp, ErrCodeTestRunning)

	single := frame.New(CmdTestSingle)
	single.AddByte(byte(sensor.IDVL53L0X))
	resp, _ = d.Process(single)
	expectNak(t, resp, ErrCodeTestRunning)
}

func TestGetStatusTracksRunnerState(t *testing.T) {
	d, run, _ := newTestDispatcher(t)

	resp, _ := d.Process(frame.New(CmdGetStatus))
	if resp.Cmd != RespStatus || resp.Payload()[0] != byte(runner.StateIdle) {
		t.Fatalf("idle status: % x", resp.Payload())
	}

	d.Process(frame.New(CmdTestAll))
	resp, _ = d.Process(frame.New(CmdGetStatus))
	if resp.Payload()[0] != byte(runner.StateRunning) {
		t.Fatalf("running status: % x", resp.Payload())
	}

	run.Tick()
	run.Tick()
	resp, _ = d.Process(frame.New(CmdGetStatus))
	if resp.Payload()[0] != byte(runner.StateComplete) {
		t.Fatalf("complete status: % x", resp.Payload())
	}
}

func TestCancelTestReturnsToIdle(t *testing.T) {
	d, run, _ := newTestDispatcher(t)

	d.Process(frame.New(CmdTestAll))
	resp, _ := d.Process(frame.New(CmdCancelTest))
	if resp.Cmd != RespAck || resp.Payload()[0] != CmdCancelTest {
		t.Fatalf("cancel response: cmd=%#02x payload=% x", resp.Cmd, resp.Payload())
	}
	if run.State() != runner.StateIdle {
		t.Fatalf("runner state after cancel: %v", run.State())
	}
}
