package mqtt

import (
	"fmt"
)

// OnRefetch calls fn whenever a message arrives on Topics.Refetch.
// The payload is ignored. The subscription is restored after every
// reconnect until StopRefetch is called.
//
// Returns:
//   - error: ErrNotConnected, or ErrRefetchFailed wrapping the cause
func (c *Client) OnRefetch(fn func()) error {
	if fn == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrRefetchFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	handler := func(string, []byte) error {
		fn()
		return nil
	}

	c.subMu.Lock()
	c.refetch = handler
	c.subMu.Unlock()

	if err := wait(c.client.Subscribe(c.topics.Refetch(), c.qos(), c.wrapHandler(handler))); err != nil {
		c.subMu.Lock()
		c.refetch = nil
		c.subMu.Unlock()
		return fmt.Errorf("%w: %w", ErrRefetchFailed, err)
	}
	return nil
}

// StopRefetch unsubscribes from Topics.Refetch. Commands arriving afterwards
// are not delivered and the subscription is no longer restored on reconnect.
// Calling it without an active subscription is a no-op.
//
// Returns:
//   - error: ErrNotConnected, or ErrRefetchFailed wrapping the cause
func (c *Client) StopRefetch() error {
	c.subMu.Lock()
	active := c.refetch != nil
	c.refetch = nil
	c.subMu.Unlock()

	if !active {
		return nil
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Unsubscribe(c.topics.Refetch())); err != nil {
		return fmt.Errorf("%w: unsubscribe: %w", ErrRefetchFailed, err)
	}
	return nil
}

// restoreRefetch re-subscribes the refetch handler after a reconnect.
// Errors are ignored; the next reconnect tries again.
func (c *Client) restoreRefetch() {
	c.subMu.RLock()
	handler := c.refetch
	c.subMu.RUnlock()

	if handler != nil {
		c.client.Subscribe(c.topics.Refetch(), c.qos(), c.wrapHandler(handler))
	}
}
