// Package telemetry exports connection lifecycle events to an MQTT broker
// and packet counters to Prometheus.
package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/util"
)

// Topic suffixes, appended to the configured prefix.
const (
	TopicAdmin       = "admin"
	TopicConnections = "connections"
	TopicLogins      = "logins"
	TopicRefusals    = "refusals"
	TopicHeartbeat   = "heartbeat"
)

// AppVersion is reported in every message.
const AppVersion = "1.0.0"

// MQTTHandler publishes lifecycle events from the EventBus to a broker.
type MQTTHandler struct {
	mu sync.Mutex

	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.EventBus) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	handler := newHandler(cfg, eventBus, sysInfo)

	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("craftflow-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)
	return handler, nil
}

func newHandler(cfg config.MQTTConfig, eventBus *events.EventBus, sysInfo util.SystemInfo) *MQTTHandler {
	return &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: map[string]interface{}{
			"hostname":    sysInfo.Hostname,
			"platform":    sysInfo.Platform,
			"cpu_model":   sysInfo.CPUModel,
			"cpu_cores":   sysInfo.CPUCores,
			"memory_mb":   sysInfo.TotalMemory,
			"app_version": AppVersion,
		},
	}
}

// Start connects to the broker, subscribes to the bus and blocks until ctx
// is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()
	defer h.unsubscribeEvents()

	<-ctx.Done()

	h.PublishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

var subscriptions = []struct {
	event events.EventType
	name  string
}{
	{events.EventNewConnection, "mqtt.newConnection"},
	{events.EventDisconnect, "mqtt.disconnect"},
	{events.EventLogin, "mqtt.login"},
	{events.EventUnsupportedVersion, "mqtt.unsupportedVersion"},
	{events.EventLegacyPing, "mqtt.legacyPing"},
	{events.EventHeartbeat, "mqtt.heartbeat"},
}

func (h *MQTTHandler) subscribeEvents() {
	for _, s := range subscriptions {
		h.eventBus.Subscribe(s.event, s.name, h.onEvent)
	}
}

func (h *MQTTHandler) unsubscribeEvents() {
	for _, s := range subscriptions {
		h.eventBus.Unsubscribe(s.event, s.name)
	}
}

func (h *MQTTHandler) topic(suffix string) string {
	if h.cfg.TopicPrefix == "" {
		return suffix
	}
	return h.cfg.TopicPrefix + "/" + suffix
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.client.IsConnected() {
		return
	}

	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

// onEvent maps a lifecycle event to its topic and a flat JSON payload.
func (h *MQTTHandler) onEvent(ctx context.Context, event events.Event) error {
	topic, payload, ok := describe(event)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	h.publish(h.topic(topic), payload)
	return nil
}

func describe(event events.Event) (string, map[string]interface{}, bool) {
	switch p := event.Payload.(type) {
	case *events.ConnectionPayload:
		out := map[string]interface{}{
			"event":        string(event.Type),
			"conn_id":      p.ConnID,
			"remote":       p.Remote,
			"version":      int32(p.Version),
			"state":        p.State.String(),
			"connected_at": p.ConnectedAt.UTC().Format(time.RFC3339),
		}
		if event.Type == events.EventDisconnect {
			out["reason"] = p.Reason
			out["duration_ms"] = time.Since(p.ConnectedAt).Milliseconds()
		}
		return TopicConnections, out, true
	case *events.LoginPayload:
		return TopicLogins, map[string]interface{}{
			"event":    string(event.Type),
			"conn_id":  p.ConnID,
			"remote":   p.Remote,
			"version":  int32(p.Version),
			"username": p.Username,
			"uuid":     p.UUID.String(),
		}, true
	case *events.UnsupportedVersionPayload:
		return TopicRefusals, map[string]interface{}{
			"event":   string(event.Type),
			"conn_id": p.ConnID,
			"remote":  p.Remote,
			"version": int32(p.Version),
		}, true
	case *events.LegacyPingPayload:
		return TopicConnections, map[string]interface{}{
			"event":    string(event.Type),
			"conn_id":  p.ConnID,
			"remote":   p.Remote,
			"format":   p.Format.String(),
			"answered": p.Response != nil,
		}, true
	case *events.HeartbeatPayload:
		return TopicHeartbeat, map[string]interface{}{
			"event":       string(event.Type),
			"connections": p.Connections,
			"players":     p.Players,
			"healthy":     p.Healthy,
			"failing":     p.Failing,
		}, true
	}
	return "", nil, false
}

// PublishShutdown sends a shutdown message to the MQTT broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(h.topic(TopicAdmin), map[string]interface{}{
		"event": "shutdown",
	})
}
