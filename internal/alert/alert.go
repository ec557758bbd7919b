// Package alert bridges SecurityEvents to the embedded alert client
// collaborator over MQTT (grounded on the teacher's MQTTPublisher:
// connection-handler logging style, auto-reconnect options).
package alert

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwsl/rfthreat/internal/config"
	"github.com/cwsl/rfthreat/internal/threat"
)

// Bridge publishes SecurityEvents to an MQTT broker for the embedded
// alert client.
type Bridge struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

// New connects to the configured broker and returns a Bridge. If the
// connection fails, the error is returned without a retry; cmd/rfthreat
// then exits with its I/O-failure code.
func New(cfg config.MQTTConfig) (*Bridge, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(resolveClientID(cfg.ClientID))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("alert: connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("WARN: alert: MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("alert: connect to broker %q: %w", cfg.Broker, token.Error())
	}

	return &Bridge{client: client, cfg: cfg}, nil
}

// Publish serializes event as the canonical NDJSON payload and publishes
// it to the configured topic. Publish failures are logged and absorbed;
// the alert bridge is a best-effort collaborator, not a dependency of
// the main pipeline's emission guarantee.
func (b *Bridge) Publish(event threat.SecurityEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: alert: marshal event %s: %v", event.EventID, err)
		return
	}

	token := b.client.Publish(b.cfg.Topic, b.cfg.QoS, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("WARN: alert: publish event %s failed: %v", event.EventID, token.Error())
		}
	}()
}

// Close disconnects from the broker, waiting up to 250ms for in-flight
// publishes to complete.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

// resolveClientID applies the documented default MQTT client ID when
// none is configured.
func resolveClientID(configured string) string {
	if configured == "" {
		return "rfthreat"
	}
	return configured
}
