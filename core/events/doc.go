// Package events defines the job lifecycle events published on the in-process
// event bus. Consumers (metrics, MQTT relay) observe them; HTTP handlers never
// do, pollers read the order store instead.
package events
