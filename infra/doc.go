// Package infra contains technical adapters: the Home Assistant REST
// client, the MQTT transport, metrics exporters and the JSON document
// store. These packages depend only on the interfaces defined in the
// core packages.
package infra
