// Package infra contains technical adapters: the SQL and in-memory stores,
// the MQTT client, Redis and MQTT notifiers, metrics exporters and Sentry.
// These packages depend only on the ports defined in the core packages.
package infra
