package hass

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/angas/pricewatch-go/config"
	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/types"
)

const availabilityTopic = "pricewatch/status"

// Hass publishes price analytics to an MQTT broker in Home Assistant's
// discovery format. Every registered household becomes a device with one
// state topic, the entities read from it via value templates.
type Hass struct {
	mqttClient      mqtt.Client
	logger          *slog.Logger
	discoveryPrefix string
	mu              sync.Mutex
	announced       map[string]bool // household IDs with published discovery configs
}

func New(cfg config.AppConfigMqtt) *Hass {
	logger := slog.Default().With("module", "hass")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID("pricewatch")
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(availabilityTopic, "offline", 0, true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("home assistant MQTT connected")
		client.Publish(availabilityTopic, 0, true, "online")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("home assistant MQTT connection lost", slog.Any("error", err))
	}

	mqttLogger := slog.Default().With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLogger, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLogger, slog.LevelWarn)

	return &Hass{
		mqttClient:      mqtt.NewClient(opts),
		logger:          logger,
		discoveryPrefix: cfg.GetDiscoveryPrefix(),
		announced:       make(map[string]bool),
	}
}

func (h *Hass) Connect() error {
	h.logger.Debug("connecting home assistant MQTT client")
	if token := h.mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (h *Hass) Disconnect() {
	h.logger.Info("disconnecting home assistant MQTT client")
	token := h.mqttClient.Publish(availabilityTopic, 0, true, "offline")
	token.WaitTimeout(time.Second)
	h.mqttClient.Disconnect(250)
}

// PublishSnapshot pushes one household's refreshed analytics. Discovery
// configs go out once per household, states on every call.
func (h *Hass) PublishSnapshot(household types.Household, snap coordinator.Snapshot, report optimize.Report) {
	h.mu.Lock()
	announced := h.announced[household.ID]
	h.announced[household.ID] = true
	h.mu.Unlock()

	if !announced {
		if err := h.publishDiscovery(household); err != nil {
			h.logger.Error("publishing discovery configs", slog.Any("error", err))
		}
	}

	state := stateDocument(snap, report)
	payload, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("marshalling state", slog.Any("error", err))
		return
	}

	topic := stateTopic(household.ID)
	token := h.mqttClient.Publish(topic, 0, true, payload)
	if ok := token.WaitTimeout(time.Second * 5); !ok {
		h.logger.Warn("timeout publishing state", slog.String("topic", topic))
	} else if token.Error() != nil {
		h.logger.Error("publishing state", slog.String("topic", topic), slog.Any("error", token.Error()))
	}
}

func stateTopic(householdID string) string {
	return fmt.Sprintf("pricewatch/%s/state", householdID)
}

// stateDocument flattens a report into the key/value form the discovery
// value templates read.
func stateDocument(snap coordinator.Snapshot, report optimize.Report) map[string]any {
	doc := map[string]any{
		"status":             string(snap.Freshness),
		"fetched_at":         snap.FetchedAt.Format(time.RFC3339),
		"current_price":      nil,
		"price_level":        nil,
		"average_price":      nil,
		"min_price":          nil,
		"max_price":          nil,
		"deviation_percent":  nil,
		"rank":               nil,
		"percentile":         nil,
		"breakeven_price":    nil,
		"best_window_start":  nil,
		"price_is_cheap":     boolState(false),
		"price_is_expensive": boolState(false),
		"is_cheapest_hour":   boolState(report.IsCheapestHour),
		"is_expensive_hour":  boolState(report.IsMostExpensiveHour),
		"in_best_window":     boolState(report.InBestWindow),
		"in_custom_window":   boolState(report.InCustomWindow),
		"good_charging_time": boolState(report.IsGoodChargingTime),
		"battery_economical": boolState(report.BatteryIsEconomical),
		"data_is_live":       boolState(snap.Freshness == coordinator.FreshnessLive),
	}

	if report.CurrentPrice.IsValid() {
		current := report.CurrentPrice.Value()
		doc["current_price"] = current.Total
		doc["price_level"] = current.Level.String()
		doc["price_is_cheap"] = boolState(current.Level.IsCheap())
		doc["price_is_expensive"] = boolState(current.Level.IsExpensive())
	}
	if report.Summary.IsValid() {
		summary := report.Summary.Value()
		doc["average_price"] = summary.Average
		doc["min_price"] = summary.Min
		doc["max_price"] = summary.Max
	}
	if report.Deviation.IsValid() {
		doc["deviation_percent"] = report.Deviation.Value().Percent
	}
	if report.Rank.IsValid() {
		doc["rank"] = report.Rank.Value()
	}
	if report.Percentile.IsValid() {
		doc["percentile"] = report.Percentile.Value()
	}
	if report.BreakevenPrice.IsValid() {
		doc["breakeven_price"] = report.BreakevenPrice.Value()
	}
	if report.BestWindow.IsValid() {
		doc["best_window_start"] = report.BestWindow.Value().Start.Format(time.RFC3339)
	}

	return doc
}

func boolState(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
