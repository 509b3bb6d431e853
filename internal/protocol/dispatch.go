package protocol

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/protocol/frame"
	"github.com/danmuck/rigctl/internal/runner"
	"github.com/danmuck/rigctl/internal/sensor"
)

// Handler turns a request payload into a response frame. The false return
// is reserved for future fire-and-forget commands; every handler today
// responds.
type Handler func(payload []byte) (frame.Frame, bool)

// Dispatcher maps command opcodes onto behavior against the sensor registry
// and the test orchestrator. The handler table is fixed at construction.
type Dispatcher struct {
	reg      *sensor.Registry
	runner   *runner.Runner
	log      zerolog.Logger
	handlers map[uint8]Handler
}

func NewDispatcher(reg *sensor.Registry, run *runner.Runner, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{reg: reg, runner: run, log: log}
	d.handlers = map[uint8]Handler{
		CmdPing:          d.handlePing,
		CmdGetSensorList: d.handleGetSensorList,
		CmdSetSpec:       d.handleSetSpec,
		CmdGetSpec:       d.handleGetSpec,
		CmdTestSingle:    d.handleTestSingle,
		CmdTestAll:       d.handleTestAll,
		CmdGetStatus:     d.handleGetStatus,
		CmdCancelTest:    d.handleCancelTest,
	}
	return d
}

// Process interprets one validated request frame. Unrecognized opcodes
// yield a NAK.
func (d *Dispatcher) Process(req frame.Frame) (frame.Frame, bool) {
	h, ok := d.handlers[req.Cmd]
	if !ok {
		d.log.Warn().Uint8("cmd", req.Cmd).Msg("unknown command")
		return BuildNak(ErrCodeUnknownCmd), true
	}
	return h(req.Payload())
}

// BuildNak produces the shared single-byte-payload NAK frame.
func BuildNak(code ErrorCode) frame.Frame {
	resp := frame.New(RespNak)
	resp.AddByte(byte(code))
	return resp
}

func (d *Dispatcher) handlePing(payload []byte) (frame.Frame, bool) {
	resp := frame.New(RespPong)
	resp.AddByte(VersionMajor)
	resp.AddByte(VersionMinor)
	resp.AddByte(VersionPatch)
	return resp, true
}

func (d *Dispatcher) handleGetSensorList(payload []byte) (frame.Frame, bool) {
	resp := frame.New(RespSensorList)
	resp.AddByte(byte(d.reg.Count()))
	for i := 0; i < d.reg.Count(); i++ {
		drv, _ := d.reg.ByIndex(i)
		name := []byte(drv.Name())
		if !resp.AddByte(byte(drv.ID())) ||
			!resp.AddByte(byte(len(name))) ||
			!resp.AddBytes(name) {
			return BuildNak(ErrCodeInvalidPayload), true
		}
	}
	return resp, true
}

func (d *Dispatcher) handleSetSpec(payload []byte) (frame.Frame, bool) {
	if len(payload) < 1+sensor.SpecWireSize {
		return BuildNak(ErrCodeInvalidPayload), true
	}
	drv, ok := d.reg.ByID(sensor.ID(payload[0]))
	if !ok {
		return BuildNak(ErrCodeInvalidSensorID), true
	}
	spec, err := drv.ParseSpec(payload[1:])
	if err != nil {
		return BuildNak(ErrCodeInvalidPayload), true
	}
	if err := drv.SetSpec(spec); err != nil {
		return BuildNak(ErrCodeInvalidPayload), true
	}
	d.log.Info().Str("sensor", drv.Name()).Msg("spec updated")
	return buildAck(CmdSetSpec), true
}

func (d *Dispatcher) handleGetSpec(payload []byte) (frame.Frame, bool) {
	if len(payload) < 1 {
		return BuildNak(ErrCodeInvalidPayload), true
	}
	drv, ok := d.reg.ByID(sensor.ID(payload[0]))
	if !ok {
		return BuildNak(ErrCodeInvalidSensorID), true
	}
	spec, ok := drv.Spec()
	if !ok {
		return BuildNak(ErrCodeNoSpec), true
	}
	specBytes, err := drv.SerializeSpec(spec)
	if err != nil {
		return BuildNak(ErrCodeInvalidPayload), true
	}
	resp := frame.New(RespSpecData)
	resp.AddByte(payload[0])
	resp.AddBytes(specBytes)
	return resp, true
}

func (d *Dispatcher) handleTestSingle(payload []byte) (frame.Frame, bool) {
	if len(payload) < 1 {
		return BuildNak(ErrCodeInvalidPayload), true
	}
	id := sensor.ID(payload[0])
	if !d.reg.IsValidID(id) {
		return BuildNak(ErrCodeInvalidSensorID), true
	}
	if !d.runner.StartSingle(id) {
		return BuildNak(ErrCodeTestRunning), true
	}
	return buildAck(CmdTestSingle), true
}

func (d *Dispatcher) handleTestAll(payload []byte) (frame.Frame, bool) {
	if !d.runner.StartAll() {
		return BuildNak(ErrCodeTestRunning), true
	}
	return buildAck(CmdTestAll), true
}

func (d *Dispatcher) handleGetStatus(payload []byte) (frame.Frame, bool) {
	resp := frame.New(RespStatus)
	resp.AddByte(byte(d.runner.State()))
	return resp, true
}

func (d *Dispatcher) handleCancelTest(payload []byte) (frame.Frame, bool) {
	d.runner.Cancel()
	return buildAck(CmdCancelTest), true
}

func buildAck(cmd uint8) frame.Frame {
	resp := frame.New(RespAck)
	resp.AddByte(cmd)
	return resp
}
