package session

import "time"

// Config bounds the session's buffering and transmit behavior.
type Config struct {
	// RxBufferSize is the receive accumulator capacity in bytes. It must
	// hold at least one maximum-size frame.
	RxBufferSize int

	// SendTimeout bounds each blocking transport send.
	SendTimeout time.Duration
}

// DefaultConfig mirrors the rig's UART defaults: a 128-byte accumulator and
// a one-second transmit timeout.
func DefaultConfig() Config {
	return Config{
		RxBufferSize: 128,
		SendTimeout:  time.Second,
	}
}
