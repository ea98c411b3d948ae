package hass

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angas/pricewatch-go/types"
)

type sensorDef struct {
	key         string
	name        string
	unit        string
	deviceClass string
}

type binarySensorDef struct {
	key  string
	name string
}

var sensorDefs = []sensorDef{
	{key: "current_price", name: "Current Price", unit: "SEK/kWh", deviceClass: "monetary"},
	{key: "average_price", name: "Average Price Today", unit: "SEK/kWh", deviceClass: "monetary"},
	{key: "min_price", name: "Lowest Price Today", unit: "SEK/kWh", deviceClass: "monetary"},
	{key: "max_price", name: "Highest Price Today", unit: "SEK/kWh", deviceClass: "monetary"},
	{key: "breakeven_price", name: "Battery Breakeven Price", unit: "SEK/kWh", deviceClass: "monetary"},
	{key: "price_level", name: "Price Level"},
	{key: "deviation_percent", name: "Price Deviation", unit: "%"},
	{key: "rank", name: "Price Rank Today"},
	{key: "percentile", name: "Price Percentile Today", unit: "%"},
	{key: "best_window_start", name: "Cheapest Window Start", deviceClass: "timestamp"},
	{key: "fetched_at", name: "Prices Fetched At", deviceClass: "timestamp"},
}

var binarySensorDefs = []binarySensorDef{
	{key: "price_is_cheap", name: "Price Is Cheap"},
	{key: "price_is_expensive", name: "Price Is Expensive"},
	{key: "is_cheapest_hour", name: "Cheapest Hour"},
	{key: "is_expensive_hour", name: "Most Expensive Hour"},
	{key: "in_best_window", name: "In Cheapest Window"},
	{key: "in_custom_window", name: "In Custom Window"},
	{key: "good_charging_time", name: "Good Charging Time"},
	{key: "battery_economical", name: "Battery Use Economical"},
	{key: "data_is_live", name: "Price Data Live"},
}

func (h *Hass) publishDiscovery(household types.Household) error {
	h.logger.Info("publishing discovery configs",
		"household", household.ID, "prefix", h.discoveryPrefix)

	device := map[string]any{
		"identifiers":  []string{fmt.Sprintf("pricewatch_%s", household.ID)},
		"name":         fmt.Sprintf("Pricewatch %s", household.Name),
		"manufacturer": "pricewatch",
	}

	for _, def := range sensorDefs {
		topic := fmt.Sprintf("%s/sensor/pricewatch_%s/%s/config", h.discoveryPrefix, household.ID, def.key)
		cfg := map[string]any{
			"name":               def.name,
			"unique_id":          fmt.Sprintf("pricewatch_%s_%s", household.ID, def.key),
			"state_topic":        stateTopic(household.ID),
			"availability_topic": availabilityTopic,
			"value_template":     fmt.Sprintf("{{ value_json.%s }}", def.key),
			"device":             device,
		}
		if def.unit != "" {
			cfg["unit_of_measurement"] = def.unit
		}
		if def.deviceClass != "" {
			cfg["device_class"] = def.deviceClass
		}
		if err := h.publishRetained(topic, cfg); err != nil {
			return err
		}
	}

	for _, def := range binarySensorDefs {
		topic := fmt.Sprintf("%s/binary_sensor/pricewatch_%s/%s/config", h.discoveryPrefix, household.ID, def.key)
		cfg := map[string]any{
			"name":               def.name,
			"unique_id":          fmt.Sprintf("pricewatch_%s_%s", household.ID, def.key),
			"state_topic":        stateTopic(household.ID),
			"availability_topic": availabilityTopic,
			"value_template":     fmt.Sprintf("{{ value_json.%s }}", def.key),
			"device":             device,
		}
		if err := h.publishRetained(topic, cfg); err != nil {
			return err
		}
	}

	return nil
}

func (h *Hass) publishRetained(topic string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling discovery config: %w", err)
	}
	token := h.mqttClient.Publish(topic, 0, true, payload)
	if ok := token.WaitTimeout(time.Second * 5); !ok {
		return fmt.Errorf("timeout publishing to '%s'", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publishing to '%s': %w", topic, token.Error())
	}
	return nil
}
