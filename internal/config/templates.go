package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes the starter rig configuration to path. Existing files
// are preserved unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if path == "" {
		return fmt.Errorf("config path required")
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(rigTemplate), 0o600)
}

const rigTemplate = `name = "rig-ctl"

[serial]
port = "/dev/ttyUSB0"
baud_rate = 115200
read_timeout_ms = 10
send_timeout_ms = 1000
rx_buffer_size = 128

[loop]
tick_interval_ms = 10

[sim]
enabled = true
ranging_base_mm = 500
ranging_jitter_mm = 5
thermal_base_centi = 2500
thermal_jitter_centi = 25

[mqtt]
enabled = false
broker = "tcp://localhost:1883"
client_id = "rig-ctl"
topic = "rigctl/reports"
qos = 1
`
