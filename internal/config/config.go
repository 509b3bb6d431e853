package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type RigConfig struct {
	Name   string       `toml:"name"`
	Serial SerialConfig `toml:"serial"`
	Loop   LoopConfig   `toml:"loop"`
	Sim    SimConfig    `toml:"sim"`
	MQTT   MQTTConfig   `toml:"mqtt"`
}

type SerialConfig struct {
	Port          string `toml:"port"`
	BaudRate      int    `toml:"baud_rate"`
	ReadTimeoutMs int    `toml:"read_timeout_ms"`
	SendTimeoutMs int    `toml:"send_timeout_ms"`
	RxBufferSize  int    `toml:"rx_buffer_size"`
}

type LoopConfig struct {
	TickIntervalMs int `toml:"tick_interval_ms"`
}

// SimConfig drives the simulated sensor backends used when the rig runs
// without real hardware attached.
type SimConfig struct {
	Enabled            bool   `toml:"enabled"`
	RangingBaseMM      uint16 `toml:"ranging_base_mm"`
	RangingJitterMM    uint16 `toml:"ranging_jitter_mm"`
	ThermalBaseCenti   int16  `toml:"thermal_base_centi"`
	ThermalJitterCenti uint16 `toml:"thermal_jitter_centi"`
}

type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
	QoS      int    `toml:"qos"`
}

func LoadRigConfig(path string) (RigConfig, error) {
	var cfg RigConfig
	if err := loadToml(path, &cfg); err != nil {
		return RigConfig{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateRigConfig(cfg); err != nil {
		return RigConfig{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() RigConfig {
	var cfg RigConfig
	applyDefaults(&cfg)
	cfg.Sim.Enabled = true
	return cfg
}

func applyDefaults(cfg *RigConfig) {
	if cfg.Name == "" {
		cfg.Name = "rig-ctl"
	}
	if cfg.Serial.Port == "" {
		cfg.Serial.Port = "/dev/ttyUSB0"
	}
	if cfg.Serial.BaudRate == 0 {
		cfg.Serial.BaudRate = 115200
	}
	if cfg.Serial.ReadTimeoutMs == 0 {
		cfg.Serial.ReadTimeoutMs = 10
	}
	if cfg.Serial.SendTimeoutMs == 0 {
		cfg.Serial.SendTimeoutMs = 1000
	}
	if cfg.Serial.RxBufferSize == 0 {
		cfg.Serial.RxBufferSize = 128
	}
	if cfg.Loop.TickIntervalMs == 0 {
		cfg.Loop.TickIntervalMs = 10
	}
	if cfg.Sim.RangingBaseMM == 0 {
		cfg.Sim.RangingBaseMM = 500
	}
	if cfg.Sim.ThermalBaseCenti == 0 {
		cfg.Sim.ThermalBaseCenti = 2500
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.Name
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "rigctl/reports"
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateRigConfig(cfg RigConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("rig config missing name")
	}
	if strings.TrimSpace(cfg.Serial.Port) == "" {
		return fmt.Errorf("rig config missing serial port")
	}
	if cfg.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial baud_rate must be positive, got %d", cfg.Serial.BaudRate)
	}
	if cfg.Serial.RxBufferSize < 0 {
		return fmt.Errorf("serial rx_buffer_size must not be negative, got %d", cfg.Serial.RxBufferSize)
	}
	if cfg.Loop.TickIntervalMs <= 0 {
		return fmt.Errorf("loop tick_interval_ms must be positive, got %d", cfg.Loop.TickIntervalMs)
	}
	if cfg.MQTT.Enabled {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return fmt.Errorf("mqtt broker required when mqtt is enabled")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0..2, got %d", cfg.MQTT.QoS)
		}
	}
	return nil
}
