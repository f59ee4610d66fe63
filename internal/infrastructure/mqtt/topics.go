package mqtt

import "strings"

// DefaultTopicPrefix is the root of every topic the dashboard uses.
const DefaultTopicPrefix = "occupancy"

// Topics builds the MQTT topics for one monitored series.
//
//	topics := mqtt.NewTopics("occupancy", "puregymbucket", "People")
//	topics.Latest()  // "occupancy/puregymbucket/People/latest"
//	topics.Refetch() // "occupancy/puregymbucket/People/command/refetch"
//	topics.Status()  // "occupancy/system/status"
type Topics struct {
	Prefix string
	Bucket string
	Field  string
}

// NewTopics returns the topics for bucket/field under prefix.
// An empty prefix falls back to DefaultTopicPrefix; MQTT wildcard and
// separator characters in bucket or field are replaced with '_'.
func NewTopics(prefix, bucket, field string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Prefix: prefix,
		Bucket: topicLevel(bucket),
		Field:  topicLevel(field),
	}
}

// Latest returns the retained topic carrying the newest sample.
//
// Example: occupancy/puregymbucket/People/latest
func (t Topics) Latest() string {
	return t.series() + "/latest"
}

// Refetch returns the command topic that requests a manual refetch.
//
// Example: occupancy/puregymbucket/People/command/refetch
func (t Topics) Refetch() string {
	return t.series() + "/command/refetch"
}

// Status returns the retained online/offline status topic.
//
// Example: occupancy/system/status
func (t Topics) Status() string {
	return t.Prefix + "/system/status"
}

func (t Topics) series() string {
	return t.Prefix + "/" + t.Bucket + "/" + t.Field
}

// topicLevel makes s safe to use as a single topic level.
func topicLevel(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', 0:
			return '_'
		default:
			return r
		}
	}, s)
}
