package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/occupancy-dashboard/internal/occupancy"
)

// LatestPayload is the retained message on Topics.Latest.
type LatestPayload struct {
	Time       time.Time `json:"time"`
	Value      float64   `json:"value"`
	Bucket     string    `json:"bucket"`
	Field      string    `json:"field"`
	RangeHours int       `json:"range_hours"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// BuildLatestPayload encodes the newest sample of a fetch.
func BuildLatestPayload(topics Topics, key occupancy.QueryKey, s occupancy.Sample, fetchedAt time.Time) ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: sample has no usable time or value", ErrPublishFailed)
	}
	return json.Marshal(LatestPayload{
		Time:       s.Time.UTC(),
		Value:      s.Value,
		Bucket:     topics.Bucket,
		Field:      topics.Field,
		RangeHours: int(key),
		FetchedAt:  fetchedAt.UTC(),
	})
}

// PublishLatest publishes the newest sample as a retained message.
//
// Parameters:
//   - key: Window the sample was fetched for
//   - s: Newest sample of the window
//   - fetchedAt: When the fetch completed
//
// Returns:
//   - error: ErrNotConnected, ErrPublishFailed (wrapped)
func (c *Client) PublishLatest(key occupancy.QueryKey, s occupancy.Sample, fetchedAt time.Time) error {
	payload, err := BuildLatestPayload(c.topics, key, s, fetchedAt)
	if err != nil {
		return err
	}
	return c.publish(c.topics.Latest(), payload, true)
}
