package main

import (
	"bytes"
	"log/slog"

	"i4.energy/across/atgw/at"
	"i4.energy/across/atgw/modem"
)

// newURCTable returns the notifications the gateway listens for. Each one is
// only logged; the modem reconnects Wi-Fi and MQTT on its own.
func newURCTable(logger *slog.Logger) modem.URCTable {
	info := func(msg string) modem.URCHandler {
		return func(f at.Frame) {
			logger.Info(msg, "line", string(f.Text()))
		}
	}
	warn := func(msg string) modem.URCHandler {
		return func(f at.Frame) {
			logger.Warn(msg, "line", string(f.Text()))
		}
	}

	return modem.URCTable{
		{Prefix: at.UrcMQTTSubscribeRecv, Handle: func(f at.Frame) {
			topic, size, ok := parseSubRecv(f.Text())
			if !ok {
				logger.Warn("Malformed MQTT message notification", "line", string(f.Text()))
				return
			}
			logger.Info("MQTT message received", "topic", topic, "length", size)
		}},
		{Prefix: at.UrcMQTTConnected, Handle: info("MQTT connected")},
		{Prefix: at.UrcMQTTDisconnected, Handle: warn("MQTT disconnected")},
		{Prefix: at.UrcWifiConnected, Handle: info("Wi-Fi connected")},
		{Prefix: at.UrcWifiGotIP, Handle: info("Wi-Fi got IP")},
		{Prefix: at.UrcWifiDisconnect, Handle: warn("Wi-Fi disconnected")},
		{Prefix: at.UrcReady, Handle: warn("Modem restarted")},
	}
}

// parseSubRecv extracts the topic and data length from
// +MQTTSUBRECV:<link>,"<topic>",<len>,<data>.
func parseSubRecv(line []byte) (topic string, size int, ok bool) {
	rest, found := bytes.CutPrefix(line, []byte(at.UrcMQTTSubscribeRecv+":"))
	if !found {
		return "", 0, false
	}
	_, rest, found = bytes.Cut(rest, []byte(`,"`))
	if !found {
		return "", 0, false
	}
	t, rest, found := bytes.Cut(rest, []byte(`",`))
	if !found {
		return "", 0, false
	}
	n, _, _ := bytes.Cut(rest, []byte(","))
	if size, ok = at.ParseDecimal(n); !ok {
		return "", 0, false
	}
	return string(t), size, true
}
