// Package mqtt publishes the newest occupancy sample to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - A retained "latest" message updated after every successful fetch
//   - A refetch command topic other services can use to force a refresh
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	occupancy/<bucket>/<field>/latest           retained, LatestPayload JSON
//	occupancy/<bucket>/<field>/command/refetch  any payload triggers a refetch
//	occupancy/system/status                     retained online/offline status
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Source.Bucket, cfg.Source.Field)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.OnRefetch(cache.Refetch); err != nil {
//	    return err
//	}
//	defer client.StopRefetch()
//
//	err = client.PublishLatest(48, sample, time.Now())
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) outside local development
//   - Message payloads are not encrypted beyond TLS transport
package mqtt
