package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps a single message. A latest payload is well under 1KB.
const maxPayloadSize = 1 << 20

// publish sends payload to topic at the configured QoS and waits for the
// broker to acknowledge it.
//
// Returns:
//   - error: ErrNotConnected, or ErrPublishFailed wrapping the cause
func (c *Client) publish(topic string, payload []byte, retained bool) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %s payload is %d bytes, limit %d", ErrPublishFailed, topic, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Publish(topic, c.qos(), retained, payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// qos is the configured delivery level for every dashboard message.
func (c *Client) qos() byte {
	return byte(c.cfg.QoS)
}

// wait blocks until token completes, giving up after defaultPublishTimeout.
func wait(token pahomqtt.Token) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w after %v", ErrTimeout, defaultPublishTimeout)
	}
	return token.Error()
}
