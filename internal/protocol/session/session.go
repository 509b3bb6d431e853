// Package session pumps bytes between the transport and the frame codec and
// routes completed frames to the command dispatcher. It owns the reassembly
// and backpressure policy of the serial link.
package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/protocol"
	"github.com/danmuck/rigctl/internal/protocol/frame"
	"github.com/danmuck/rigctl/internal/runner"
	"github.com/danmuck/rigctl/internal/sensor"
)

// Transport is the raw byte link. ReceiveAvailable never blocks and returns
// at most max bytes; Send blocks up to the timeout.
type Transport interface {
	ReceiveAvailable(max int) ([]byte, error)
	Send(b []byte, timeout time.Duration) error
}

// ReportSink observes every completed test report as it is transmitted.
// Sinks must not block the scheduler for long.
type ReportSink interface {
	PublishReport(rep runner.Report)
}

// Session glues transport, codec, dispatcher and orchestrator together. One
// Tick pulls available bytes, extracts as many frames as the accumulator
// holds, answers them, and flushes a completed test report if one is ready.
type Session struct {
	tr   Transport
	disp *protocol.Dispatcher
	run  *runner.Runner
	reg  *sensor.Registry
	cfg  Config
	log  zerolog.Logger
	sink ReportSink

	buf []byte
}

func New(tr Transport, disp *protocol.Dispatcher, run *runner.Runner, reg *sensor.Registry, cfg Config, log zerolog.Logger) *Session {
	if cfg.RxBufferSize < frame.MaxSize {
		cfg.RxBufferSize = frame.MaxSize
	}
	return &Session{
		tr:   tr,
		disp: disp,
		run:  run,
		reg:  reg,
		cfg:  cfg,
		log:  log,
		buf:  make([]byte, 0, cfg.RxBufferSize),
	}
}

// SetReportSink attaches an optional observer for completed reports.
func (s *Session) SetReportSink(sink ReportSink) {
	s.sink = sink
}

// Tick performs one scheduling pass: receive, reassemble, dispatch,
// respond, and flush a completed report. It never blocks beyond the
// configured send timeout.
func (s *Session) Tick() {
	s.pull()
	s.drain()
	s.flushReport()
}

// pull moves available transport bytes into the accumulator. When the
// accumulator is full, incoming bytes are read and dropped: the newest
// in-flight frame is sacrificed rather than buffering without bound.
func (s *Session) pull() {
	space := cap(s.buf) - len(s.buf)
	if space == 0 {
		dropped, err := s.tr.ReceiveAvailable(frame.MaxSize)
		if err == nil && len(dropped) > 0 {
			s.log.Warn().Int("bytes", len(dropped)).Msg("rx accumulator full, dropping")
		}
		return
	}
	data, err := s.tr.ReceiveAvailable(space)
	if err != nil {
		s.log.Error().Err(err).Msg("transport receive failed")
		return
	}
	s.buf = append(s.buf, data...)
}

// drain repeatedly runs the codec over the accumulator, shifting consumed
// bytes off the front, until it reports incomplete or the buffer empties.
func (s *Session) drain() {
	for len(s.buf) > 0 {
		req, status, consumed := frame.Parse(s.buf)
		if consumed > 0 {
			s.buf = append(s.buf[:0], s.buf[consumed:]...)
		}

		switch status {
		case frame.ParseOK:
			if resp, send := s.disp.Process(req); send {
				s.send(&resp)
			}
		case frame.ParseBadChecksum:
			s.log.Warn().Msg("frame checksum failed")
			nak := protocol.BuildNak(protocol.ErrCodeCRCFail)
			s.send(&nak)
		case frame.ParseBadFormat:
			// Noise on the line; resynchronized silently.
			continue
		case frame.ParseIncomplete:
			return
		}
	}
}

// flushReport transmits the serialized report once the orchestrator
// completes. Retrieval is destructive, so this fires exactly once per run.
// A report too large for one frame is answered with a NAK instead of
// leaving the host to time out; the sink sees the report either way.
func (s *Session) flushReport() {
	if s.run.State() != runner.StateComplete {
		return
	}
	rep, ok := s.run.Report()
	if !ok {
		return
	}

	resp := frame.New(protocol.RespTestResult)
	if resp.AddBytes(rep.Serialize(s.reg)) {
		s.send(&resp)
	} else {
		s.log.Error().Uint8("sensors", rep.SensorCount).Msg("report exceeds frame payload")
		nak := protocol.BuildNak(protocol.ErrCodeReportOverflow)
		s.send(&nak)
	}

	if s.sink != nil {
		s.sink.PublishReport(rep)
	}
}

func (s *Session) send(f *frame.Frame) {
	if err := s.tr.Send(frame.Build(f), s.cfg.SendTimeout); err != nil {
		s.log.Error().Err(err).Uint8("cmd", f.Cmd).Msg("transport send failed")
	}
}
