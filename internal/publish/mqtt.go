// Package publish forwards completed test reports to off-rig consumers.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/danmuck/rigctl/internal/config"
	"github.com/danmuck/rigctl/internal/runner"
	"github.com/danmuck/rigctl/internal/sensor"
)

const connectTimeout = 5 * time.Second

// MQTTPublisher mirrors every completed report onto an MQTT topic as JSON,
// so lab dashboards can watch the rig without holding the serial port.
type MQTTPublisher struct {
	client paho.Client
	topic  string
	qos    byte
	rig    string
	reg    *sensor.Registry
	log    zerolog.Logger
}

// reportDoc is the published JSON shape.
type reportDoc struct {
	Rig       string     `json:"rig"`
	Timestamp uint32     `json:"timestamp_ms"`
	Sensors   uint8      `json:"sensors"`
	Passed    uint8      `json:"passed"`
	Failed    uint8      `json:"failed"`
	AllPassed bool       `json:"all_passed"`
	Entries   []entryDoc `json:"entries"`
}

type entryDoc struct {
	Sensor string `json:"sensor"`
	Status string `json:"status"`
}

func NewMQTT(cfg config.MQTTConfig, rigName string, reg *sensor.Registry, log zerolog.Logger) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("publish: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("publish: connect to %s failed: %w", cfg.Broker, err)
	}
	log.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("mqtt publisher connected")

	return &MQTTPublisher{
		client: client,
		topic:  cfg.Topic,
		qos:    byte(cfg.QoS),
		rig:    rigName,
		reg:    reg,
		log:    log.With().Str("rig", rigName).Logger(),
	}, nil
}

// PublishReport fires the report at the broker without waiting for the
// broker to confirm; the scheduler loop must not stall on the network.
func (p *MQTTPublisher) PublishReport(rep runner.Report) {
	doc := p.buildDoc(rep)
	body, err := json.Marshal(doc)
	if err != nil {
		p.log.Error().Err(err).Msg("report marshal failed")
		return
	}
	p.client.Publish(p.topic, p.qos, false, body)
	p.log.Debug().Str("topic", p.topic).Int("bytes", len(body)).Msg("report published")
}

func (p *MQTTPublisher) buildDoc(rep runner.Report) reportDoc {
	doc := reportDoc{
		Rig:       p.rig,
		Timestamp: rep.Timestamp,
		Sensors:   rep.SensorCount,
		Passed:    rep.PassCount,
		Failed:    rep.FailCount,
		AllPassed: rep.AllPassed(),
	}
	for _, e := range rep.Entries() {
		name := fmt.Sprintf("0x%02X", uint8(e.ID))
		if d, ok := p.reg.ByID(e.ID); ok {
			name = d.Name()
		}
		doc.Entries = append(doc.Entries, entryDoc{
			Sensor: name,
			Status: e.Status.String(),
		})
	}
	return doc
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
