package mqtt

import "errors"

// Errors returned by the publisher. Check with errors.Is.
var (
	// ErrNotConnected means the broker connection is down.
	ErrNotConnected = errors.New("mqtt: broker not connected")

	// ErrConnectionFailed means Connect could not reach the broker.
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")

	// ErrPublishFailed means a latest or status message was not delivered.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrRefetchFailed means the refetch command topic could not be
	// subscribed or unsubscribed.
	ErrRefetchFailed = errors.New("mqtt: refetch command subscription failed")

	// ErrTimeout means the broker did not acknowledge in time.
	ErrTimeout = errors.New("mqtt: broker did not acknowledge in time")
)
