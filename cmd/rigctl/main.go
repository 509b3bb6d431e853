// rigctl is the bench operator's CLI. It speaks the rig's serial protocol:
// query the sensor roster, load pass/fail specs, kick off test runs, and
// collect the report.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/logging"
	"github.com/danmuck/rigctl/internal/protocol"
	"github.com/danmuck/rigctl/internal/protocol/frame"
	"github.com/danmuck/rigctl/internal/runner"
	"github.com/danmuck/rigctl/internal/sensor"
)

type options struct {
	port    string
	baud    int
	timeout time.Duration
	args    []string
}

func main() {
	opts := parseFlags()
	log := logging.ConfigureRuntime("rigctl")

	if len(opts.args) == 0 {
		usage()
		os.Exit(2)
	}

	c, err := dial(opts.port, opts.baud, log)
	if err != nil {
		fatalf("%v", err)
	}
	defer c.close()

	if err := dispatch(c, opts, log); err != nil {
		fatalf("%v", err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.port, "port", "/dev/ttyUSB0", "serial port the rig is attached to")
	flag.IntVar(&opts.baud, "baud", 115200, "serial baud rate")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Second, "per-response timeout")
	flag.Usage = usage
	flag.Parse()
	opts.args = flag.Args()
	return opts
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: rigctl [flags] <command>

commands:
  ping                               check the link and print the rig version
  sensors                            list the registered sensors
  set-spec <sensor> <target> <tol>   load a pass/fail spec
  get-spec <sensor>                  read back the active spec
  test [sensor]                      run tests (all sensors when none given)
  status                             print the orchestrator state
  cancel                             abort the active run

sensors are named (vl53l0x, mlx90640) or numeric ids.

flags:
`)
	flag.PrintDefaults()
}

func dispatch(c *client, opts options, log zerolog.Logger) error {
	cmd, args := opts.args[0], opts.args[1:]
	switch cmd {
	case "ping":
		return cmdPing(c, opts.timeout)
	case "sensors":
		return cmdSensors(c, opts.timeout)
	case "set-spec":
		return cmdSetSpec(c, args, opts.timeout)
	case "get-spec":
		return cmdGetSpec(c, args, opts.timeout)
	case "test":
		return cmdTest(c, args, opts.timeout, log)
	case "status":
		return cmdStatus(c, opts.timeout)
	case "cancel":
		return cmdCancel(c, opts.timeout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdPing(c *client, timeout time.Duration) error {
	resp, err := c.roundTrip(frame.New(protocol.CmdPing), timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespPong); err != nil {
		return err
	}
	p := resp.Payload()
	if len(p) < 3 {
		return fmt.Errorf("short pong payload: % x", p)
	}
	fmt.Printf("rig alive, protocol v%d.%d.%d\n", p[0], p[1], p[2])
	return nil
}

func cmdSensors(c *client, timeout time.Duration) error {
	resp, err := c.roundTrip(frame.New(protocol.CmdGetSensorList), timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespSensorList); err != nil {
		return err
	}
	p := resp.Payload()
	if len(p) < 1 {
		return fmt.Errorf("empty sensor list payload")
	}
	count := int(p[0])
	fmt.Printf("%d sensor(s):\n", count)
	off := 1
	for i := 0; i < count; i++ {
		if off+2 > len(p) {
			return fmt.Errorf("truncated sensor list at entry %d", i)
		}
		id := p[off]
		nameLen := int(p[off+1])
		off += 2
		if off+nameLen > len(p) {
			return fmt.Errorf("truncated sensor name at entry %d", i)
		}
		fmt.Printf("  0x%02X  %s\n", id, string(p[off:off+nameLen]))
		off += nameLen
	}
	return nil
}

func cmdSetSpec(c *client, args []string, timeout time.Duration) error {
	if len(args) != 3 {
		return fmt.Errorf("set-spec needs <sensor> <target> <tolerance>")
	}
	id, err := parseSensor(args[0])
	if err != nil {
		return err
	}
	target, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("bad target %q: %w", args[1], err)
	}
	tol, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("bad tolerance %q: %w", args[2], err)
	}

	req := frame.New(protocol.CmdSetSpec)
	req.AddByte(byte(id))
	switch id {
	case sensor.IDMLX90640:
		if target < -32768 || target > 32767 {
			return fmt.Errorf("thermal target %d out of range", target)
		}
		req.AddS16(int16(target))
	default:
		if target < 0 || target > 65535 {
			return fmt.Errorf("target %d out of range", target)
		}
		req.AddU16(uint16(target))
	}
	req.AddU16(uint16(tol))

	resp, err := c.roundTrip(req, timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespAck); err != nil {
		return err
	}
	fmt.Printf("spec loaded for %s\n", sensorName(id))
	return nil
}

func cmdGetSpec(c *client, args []string, timeout time.Duration) error {
	if len(args) != 1 {
		return fmt.Errorf("get-spec needs <sensor>")
	}
	id, err := parseSensor(args[0])
	if err != nil {
		return err
	}
	req := frame.New(protocol.CmdGetSpec)
	req.AddByte(byte(id))
	resp, err := c.roundTrip(req, timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespSpecData); err != nil {
		return err
	}
	p := resp.Payload()
	if len(p) < 1+sensor.SpecWireSize {
		return fmt.Errorf("short spec payload: % x", p)
	}
	printSpec(sensor.ID(p[0]), p[1:1+sensor.SpecWireSize])
	return nil
}

func cmdTest(c *client, args []string, timeout time.Duration, log zerolog.Logger) error {
	req := frame.New(protocol.CmdTestAll)
	if len(args) == 1 {
		id, err := parseSensor(args[0])
		if err != nil {
			return err
		}
		req = frame.New(protocol.CmdTestSingle)
		req.AddByte(byte(id))
	} else if len(args) > 1 {
		return fmt.Errorf("test takes at most one sensor")
	}

	resp, err := c.roundTrip(req, timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespAck); err != nil {
		return err
	}
	log.Debug().Msg("run acknowledged, waiting for report")

	// The report arrives as a separate frame once the run completes; budget
	// one response window per sensor plus slack.
	report, err := c.readFrame(timeout * (sensor.MaxSensors + 1))
	if err != nil {
		return fmt.Errorf("waiting for report: %w", err)
	}
	if err := expect(report, protocol.RespTestResult); err != nil {
		return err
	}
	return printReport(report.Payload())
}

func cmdStatus(c *client, timeout time.Duration) error {
	resp, err := c.roundTrip(frame.New(protocol.CmdGetStatus), timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespStatus); err != nil {
		return err
	}
	if resp.Len() < 1 {
		return fmt.Errorf("empty status payload")
	}
	fmt.Printf("orchestrator: %s\n", runner.State(resp.Payload()[0]))
	return nil
}

func cmdCancel(c *client, timeout time.Duration) error {
	resp, err := c.roundTrip(frame.New(protocol.CmdCancelTest), timeout)
	if err != nil {
		return err
	}
	if err := expect(resp, protocol.RespAck); err != nil {
		return err
	}
	fmt.Println("run cancelled")
	return nil
}

func parseSensor(raw string) (sensor.ID, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "vl53l0x", "tof", "ranging":
		return sensor.IDVL53L0X, nil
	case "mlx90640", "thermal", "ir":
		return sensor.IDMLX90640, nil
	}
	n, err := strconv.ParseUint(raw, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown sensor %q", raw)
	}
	return sensor.ID(n), nil
}

func sensorName(id sensor.ID) string {
	switch id {
	case sensor.IDVL53L0X:
		return "VL53L0X"
	case sensor.IDMLX90640:
		return "MLX90640"
	default:
		return fmt.Sprintf("0x%02X", uint8(id))
	}
}

func printSpec(id sensor.ID, spec []byte) {
	switch id {
	case sensor.IDMLX90640:
		target := int16(binary.BigEndian.Uint16(spec[0:2]))
		tol := binary.BigEndian.Uint16(spec[2:4])
		fmt.Printf("%s: target %.2f C, tolerance %.2f C\n",
			sensorName(id), float64(target)/100, float64(tol)/100)
	default:
		target := binary.BigEndian.Uint16(spec[0:2])
		tol := binary.BigEndian.Uint16(spec[2:4])
		fmt.Printf("%s: target %d mm, tolerance %d mm\n", sensorName(id), target, tol)
	}
}

func printReport(p []byte) error {
	if len(p) < 7 {
		return fmt.Errorf("short report payload: % x", p)
	}
	count, passed, failed := p[0], p[1], p[2]
	ts := binary.BigEndian.Uint32(p[3:7])

	verdict := "PASS"
	if failed > 0 || passed < count {
		verdict = "FAIL"
	}
	fmt.Printf("%s  %d sensor(s), %d passed, %d failed  (t=%dms)\n", verdict, count, passed, failed, ts)

	off := 7
	for off+2+sensor.ResultWireSize <= len(p) {
		id := sensor.ID(p[off])
		status := sensor.Status(p[off+1])
		result := p[off+2 : off+2+sensor.ResultWireSize]
		off += 2 + sensor.ResultWireSize

		fmt.Printf("  %-9s %-12s %s\n", sensorName(id), status, formatResult(id, status, result))
	}
	return nil
}

func formatResult(id sensor.ID, status sensor.Status, result []byte) string {
	if status != sensor.StatusPass && status != sensor.StatusFailInvalid {
		return ""
	}
	switch id {
	case sensor.IDVL53L0X:
		measured := binary.BigEndian.Uint16(result[0:2])
		target := binary.BigEndian.Uint16(result[2:4])
		diff := binary.BigEndian.Uint16(result[6:8])
		return fmt.Sprintf("measured %d mm (target %d, off by %d)", measured, target, diff)
	case sensor.IDMLX90640:
		measured := int16(binary.BigEndian.Uint16(result[0:2]))
		target := int16(binary.BigEndian.Uint16(result[2:4]))
		diff := binary.BigEndian.Uint16(result[6:8])
		return fmt.Sprintf("peak %.2f C (target %.2f, off by %.2f)",
			float64(measured)/100, float64(target)/100, float64(diff)/100)
	default:
		return fmt.Sprintf("% x", result)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "rigctl: "+format+"\n", args...)
	os.Exit(1)
}
