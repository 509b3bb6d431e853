package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/protocol"
	"github.com/danmuck/rigctl/internal/protocol/frame"
	"github.com/danmuck/rigctl/internal/transport"
)

const clientReadPoll = 10 * time.Millisecond

// client is the host side of the rig protocol: one request frame out, one
// response frame back, with NAKs surfaced as errors.
type client struct {
	tr  *transport.SerialPort
	buf []byte
}

func dial(port string, baud int, log zerolog.Logger) (*client, error) {
	tr, err := transport.OpenSerial(port, baud, clientReadPoll, log)
	if err != nil {
		return nil, err
	}
	tr.Drain()
	return &client{tr: tr}, nil
}

func (c *client) close() {
	c.tr.Close()
}

// roundTrip sends the request and returns the rig's reply.
func (c *client) roundTrip(req frame.Frame, timeout time.Duration) (frame.Frame, error) {
	if err := c.tr.Send(frame.Build(&req), timeout); err != nil {
		return frame.Frame{}, err
	}
	return c.readFrame(timeout)
}

// readFrame accumulates serial bytes until a frame parses or the deadline
// passes. Line noise is resynchronized away like the rig does it.
func (c *client) readFrame(timeout time.Duration) (frame.Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		f, status, consumed := frame.Parse(c.buf)
		if consumed > 0 {
			c.buf = c.buf[consumed:]
		}
		switch status {
		case frame.ParseOK:
			if f.Cmd == protocol.RespNak {
				return frame.Frame{}, nakError(f)
			}
			return f, nil
		case frame.ParseBadChecksum:
			return frame.Frame{}, fmt.Errorf("response frame failed checksum")
		}

		if time.Now().After(deadline) {
			return frame.Frame{}, fmt.Errorf("no response within %v", timeout)
		}
		data, err := c.tr.ReceiveAvailable(frame.MaxSize)
		if err != nil {
			return frame.Frame{}, err
		}
		c.buf = append(c.buf, data...)
	}
}

func nakError(f frame.Frame) error {
	if f.Len() < 1 {
		return fmt.Errorf("rig rejected the command")
	}
	code := protocol.ErrorCode(f.Payload()[0])
	return fmt.Errorf("rig rejected the command: %s", code)
}

// expect verifies the response opcode; protocol drift shows up here first.
func expect(f frame.Frame, cmd uint8) error {
	if f.Cmd != cmd {
		return fmt.Errorf("unexpected response %#02x (want %#02x)", f.Cmd, cmd)
	}
	return nil
}
