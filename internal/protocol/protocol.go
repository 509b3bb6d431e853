// Package protocol defines the rig's serial command surface and the
// dispatcher that turns validated frames into actions and responses.
package protocol

// Firmware version reported by PING.
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0
	VersionPatch uint8 = 0
)

// Command opcodes, host to device.
const (
	CmdPing          uint8 = 0x01
	CmdGetSensorList uint8 = 0x02
	CmdSetSpec       uint8 = 0x03
	CmdGetSpec       uint8 = 0x04
	CmdTestSingle    uint8 = 0x05
	CmdTestAll       uint8 = 0x06
	CmdGetStatus     uint8 = 0x07
	CmdCancelTest    uint8 = 0x08
)

// Response opcodes, device to host.
const (
	RespPong       uint8 = 0x81
	RespSensorList uint8 = 0x82
	// RespAck acknowledges a state-changing command; its single payload
	// byte echoes the acknowledged opcode.
	RespAck      uint8 = 0x83
	RespSpecData uint8 = 0x84
	// RespTestResult carries a serialized test report. It is sent by the
	// session when the orchestrator completes, not as the immediate reply
	// to TEST_SINGLE/TEST_ALL (those get RespAck).
	RespTestResult uint8 = 0x85
	RespStatus     uint8 = 0x86
	RespNak        uint8 = 0xFF
)

// ErrorCode is the single payload byte of a NAK response.
type ErrorCode uint8

const (
	ErrCodeCRCFail         ErrorCode = 0x01
	ErrCodeUnknownCmd      ErrorCode = 0x02
	ErrCodeInvalidSensorID ErrorCode = 0x03
	ErrCodeInvalidPayload  ErrorCode = 0x04
	ErrCodeTestRunning     ErrorCode = 0x05
	ErrCodeNoSpec          ErrorCode = 0x06
	// ErrCodeReportOverflow signals that a completed report could not fit a
	// single result frame; the run's results are gone (retrieval is
	// destructive) and the host should re-run per sensor.
	ErrCodeReportOverflow ErrorCode = 0x07
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeCRCFail:
		return "crc-fail"
	case ErrCodeUnknownCmd:
		return "unknown-cmd"
	case ErrCodeInvalidSensorID:
		return "invalid-sensor-id"
	case ErrCodeInvalidPayload:
		return "invalid-payload"
	case ErrCodeTestRunning:
		return "test-running"
	case ErrCodeNoSpec:
		return "no-spec"
	case ErrCodeReportOverflow:
		return "report-overflow"
	default:
		return "unknown"
	}
}
