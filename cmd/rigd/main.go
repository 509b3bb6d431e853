// rigd is the rig-side daemon. It owns the serial port, services protocol
// commands from the host, and drives sensor test runs.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/config"
	"github.com/danmuck/rigctl/internal/logging"
	"github.com/danmuck/rigctl/internal/protocol"
	"github.com/danmuck/rigctl/internal/protocol/session"
	"github.com/danmuck/rigctl/internal/publish"
	"github.com/danmuck/rigctl/internal/rig"
	"github.com/danmuck/rigctl/internal/runner"
	"github.com/danmuck/rigctl/internal/sensor"
	"github.com/danmuck/rigctl/internal/sensor/sim"
	"github.com/danmuck/rigctl/internal/transport"
)

type options struct {
	configPath string
	genConfig  bool
	port       string
}

func main() {
	opts := parseFlags()
	log := logging.ConfigureRuntime("rigd")

	if opts.genConfig {
		if err := config.WriteTemplate(opts.configPath, false); err != nil {
			log.Fatal().Err(err).Msg("template write failed")
		}
		log.Info().Str("path", opts.configPath).Msg("config template written")
		return
	}

	cfg := loadConfig(opts, log)
	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}

	reg := buildRegistry(cfg, log)
	start := time.Now()
	run := runner.New(reg, func() uint32 { return uint32(time.Since(start).Milliseconds()) }, log)
	disp := protocol.NewDispatcher(reg, run, log)

	tr, err := transport.OpenSerial(
		cfg.Serial.Port,
		cfg.Serial.BaudRate,
		time.Duration(cfg.Serial.ReadTimeoutMs)*time.Millisecond,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("serial open failed")
	}
	defer tr.Close()
	tr.Drain()

	sess := session.New(tr, disp, run, reg, session.Config{
		RxBufferSize: cfg.Serial.RxBufferSize,
		SendTimeout:  time.Duration(cfg.Serial.SendTimeoutMs) * time.Millisecond,
	}, log)

	if cfg.MQTT.Enabled {
		pub, err := publish.NewMQTT(cfg.MQTT, cfg.Name, reg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt publisher failed")
		}
		defer pub.Close()
		sess.SetReportSink(pub)
	}

	sched := rig.NewScheduler(sess, run, time.Duration(cfg.Loop.TickIntervalMs)*time.Millisecond, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("rig", cfg.Name).Str("port", cfg.Serial.Port).Msg("rigd started")
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("scheduler stopped")
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "rig config path (empty uses built-in defaults)")
	flag.BoolVar(&opts.genConfig, "gen-config", false, "write a config template to -config and exit")
	flag.StringVar(&opts.port, "port", "", "serial port override")
	flag.Parse()
	return opts
}

func loadConfig(opts options, log zerolog.Logger) config.RigConfig {
	if opts.configPath == "" {
		log.Info().Msg("no config given, using defaults with simulated sensors")
		return config.Default()
	}
	cfg, err := config.LoadRigConfig(opts.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	log.Info().Str("path", opts.configPath).Msg("config loaded")
	return cfg
}

// buildRegistry wires the sensor set. Host builds carry only the simulated
// backends; the I2C-attached drivers live in the embedded image.
func buildRegistry(cfg config.RigConfig, log zerolog.Logger) *sensor.Registry {
	if !cfg.Sim.Enabled {
		log.Fatal().Msg("hardware sensor backends are not part of this build, enable [sim]")
	}

	ranging := sim.NewRangingBackend(cfg.Sim.RangingBaseMM)
	ranging.JitterMM = cfg.Sim.RangingJitterMM
	thermal := sim.NewThermalBackend(cfg.Sim.ThermalBaseCenti)
	thermal.JitterCenti = int16(cfg.Sim.ThermalJitterCenti)

	reg := sensor.NewRegistry()
	if err := reg.Register(sensor.NewRangingDriver(ranging)); err != nil {
		log.Fatal().Err(err).Msg("sensor registration failed")
	}
	if err := reg.Register(sensor.NewThermalDriver(thermal)); err != nil {
		log.Fatal().Err(err).Msg("sensor registration failed")
	}
	log.Info().Int("sensors", reg.Count()).Msg("sensor registry ready")
	return reg
}
