// Package remote is the MQTT command and status surface of the
// instrument: it publishes the measurement snapshot vectors at a throttled
// cadence and accepts calibration and shutdown commands.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/isoflux/isoflux/pkg/measure"
)

// publishPeriod is the status update cadence on the broker.
const publishPeriod = 2 * time.Second

// connectTimeout bounds the initial broker handshake.
const connectTimeout = 30 * time.Second

// Instrument is the slice of the measurement core the remote surface
// needs. Implemented by measure.IsoFlux.
type Instrument interface {
	Snapshot() measure.Snapshot
	Tare(ch int) error
	SetPowerOffset(ch int, v float64) error
	PowerOffsets() []float64
}

// Surface is one MQTT client session for one instrument.
type Surface struct {
	id       string
	inst     Instrument
	shutdown func()

	client  mqtt.Client
	publish func(topic string, payload []byte)
}

// New creates the surface for the instrument with the given topic prefix.
// shutdown is invoked on an authorized poweroff command.
func New(id string, inst Instrument, shutdown func()) *Surface {
	s := &Surface{
		id:       id,
		inst:     inst,
		shutdown: shutdown,
	}
	s.publish = func(string, []byte) {}
	return s
}

// Connect establishes the broker session and subscribes to the control
// topics. Fatal at startup when the broker is unreachable.
func (s *Surface) Connect(host string, port int) error {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", host, port)).
		SetClientID(s.id).
		SetOrderMatters(true)

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt: timeout connecting to %s:%d", host, port)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connecting to %s:%d: %w", host, port, err)
	}

	s.publish = func(topic string, payload []byte) {
		s.client.Publish(topic, 0, false, payload)
	}

	filter := s.id + "/control/#"
	token = s.client.Subscribe(filter, 0, s.onMessage)
	if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		return fmt.Errorf("mqtt: subscribing %s: %v", filter, token.Error())
	}
	log.Printf("mqtt: connected to %s:%d, subscribed %s", host, port, filter)
	return nil
}

// Run publishes status updates until the context is cancelled, then
// disconnects.
func (s *Surface) Run(ctx context.Context) error {
	ticker := time.NewTicker(publishPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.client != nil {
				s.client.Disconnect(250)
			}
			return nil
		case <-ticker.C:
			s.publishStatus()
		}
	}
}

// publishStatus publishes the snapshot vectors on the status topics.
func (s *Surface) publishStatus() {
	snap := s.inst.Snapshot()
	s.publishJSON(s.id+"/power", snap.Power)
	s.publishJSON(s.id+"/offset", snap.PowerOffset)
	s.publishJSON(s.id+"/temp", snap.Temperature)
	s.publishJSON(s.id+"/flow", snap.FlowKgSec)
}

func (s *Surface) publishJSON(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshaling %s: %v", topic, err)
		return
	}
	s.publish(topic, payload)
}

// onMessage routes one control message. Command errors are isolated: the
// offending command is rejected and logged, nothing else is affected.
func (s *Surface) onMessage(_ mqtt.Client, msg mqtt.Message) {
	action := strings.TrimPrefix(msg.Topic(), s.id+"/control/")
	if err := s.dispatch(action, msg.Payload()); err != nil {
		log.Printf("mqtt: control %q rejected: %v", action, err)
	}
}

// dispatch executes one control action. Calibration mutations publish the
// updated offset vector immediately rather than waiting for the ticker.
func (s *Surface) dispatch(action string, payload []byte) error {
	switch {
	case action == "poweroff":
		if string(payload) != "OK" {
			return fmt.Errorf("poweroff needs confirmation payload \"OK\"")
		}
		log.Printf("mqtt: poweroff requested")
		s.shutdown()
		return nil

	case action == "tare":
		ch, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			return fmt.Errorf("malformed tare payload %q: %w", payload, err)
		}
		if err := s.inst.Tare(ch); err != nil {
			return err
		}
		s.publishJSON(s.id+"/offset", s.inst.PowerOffsets())
		return nil

	case strings.HasPrefix(action, "set_offsets/"):
		ch, err := strconv.Atoi(strings.TrimPrefix(action, "set_offsets/"))
		if err != nil {
			return fmt.Errorf("malformed set_offsets channel in %q: %w", action, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return fmt.Errorf("malformed set_offsets payload %q: %w", payload, err)
		}
		if err := s.inst.SetPowerOffset(ch, v); err != nil {
			return err
		}
		s.publishJSON(s.id+"/offset", s.inst.PowerOffsets())
		return nil

	default:
		return fmt.Errorf("unknown control action %q", action)
	}
}
