// Package transport provides the byte links the protocol session runs over.
package transport

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// SerialPort adapts a UART device to the session transport contract. Reads
// use a short hardware timeout so ReceiveAvailable returns promptly when the
// line is quiet.
type SerialPort struct {
	port serial.Port
	path string
	log  zerolog.Logger

	readBuf []byte
}

// OpenSerial opens the device 8N1 at the given baud rate. readTimeout bounds
// each ReceiveAvailable call; keep it small, it is the scheduler's floor
// latency when the line is idle.
func OpenSerial(path string, baudRate int, readTimeout time.Duration, log zerolog.Logger) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s failed: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s failed: %w", path, err)
	}
	log.Info().Str("port", path).Int("baud", baudRate).Msg("serial port opened")
	return &SerialPort{
		port:    port,
		path:    path,
		log:     log,
		readBuf: make([]byte, 256),
	}, nil
}

// ReceiveAvailable returns whatever arrived within one read timeout, up to
// max bytes. A quiet line yields an empty slice, not an error.
func (s *SerialPort) ReceiveAvailable(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	buf := s.readBuf
	if max < len(buf) {
		buf = buf[:max]
	}
	n, err := s.port.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("transport: read %s failed: %w", s.path, err)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

// Send writes the whole buffer. The UART driver has no write deadline, so
// the timeout only guards against a wedged device by bounding retries of
// short writes.
func (s *SerialPort) Send(b []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for len(b) > 0 {
		n, err := s.port.Write(b)
		if err != nil {
			return fmt.Errorf("transport: write %s failed: %w", s.path, err)
		}
		b = b[n:]
		if len(b) > 0 && time.Now().After(deadline) {
			return fmt.Errorf("transport: write %s timed out with %d bytes pending", s.path, len(b))
		}
	}
	return nil
}

// Drain discards pending input, useful after open when the line carries
// boot noise.
func (s *SerialPort) Drain() {
	if err := s.port.ResetInputBuffer(); err != nil {
		s.log.Warn().Err(err).Str("port", s.path).Msg("input drain failed")
	}
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}
