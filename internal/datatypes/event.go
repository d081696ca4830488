// Package datatypes defines shared vocabulary types for civil registration
// events, record actions, and webhook topics.
package datatypes

import (
	"errors"
	"fmt"
	"strings"
)

// Vocabulary validation errors (sentinels for err113).
var (
	ErrInvalidEvent  = errors.New("invalid event type")
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidTopic  = errors.New("unsupported topic")
)

// TopicPrefix is the scheme under which all webhook topics are published.
const TopicPrefix = "http://opencrvs.org/specs/webhooks"

// Event represents a civil registration event category.
// Use String() to get the string representation for API/database.
type Event uint8

// Event constants; string form is given in eventMap.
const (
	EventBirth Event = iota
	EventDeath
	EventMarriage
)

// eventMap maps string representations to Event enums.
// This is the single source of truth for valid event strings.
var eventMap = map[string]Event{
	"birth":    EventBirth,
	"death":    EventDeath,
	"marriage": EventMarriage,
}

// Action represents a record state transition a webhook can subscribe to.
type Action uint8

// Action constants; string form is given in actionMap.
const (
	ActionRegistered Action = iota
	ActionCertified
	ActionCorrected
	ActionIssued
)

// actionMap maps string representations to Action enums.
// This is the single source of truth for valid action strings.
var actionMap = map[string]Action{
	"registered": ActionRegistered,
	"certified":  ActionCertified,
	"corrected":  ActionCorrected,
	"issued":     ActionIssued,
}

var (
	reverseEventMap  map[Event]string
	reverseActionMap map[Action]string

	// allTopics holds the precomputed cartesian product of events and
	// actions in topic form, built once at package init.
	allTopics map[string]struct{}
)

func init() {
	reverseEventMap = make(map[Event]string, len(eventMap))
	for s, e := range eventMap {
		reverseEventMap[e] = s
	}

	reverseActionMap = make(map[Action]string, len(actionMap))
	for s, a := range actionMap {
		reverseActionMap[a] = s
	}

	allTopics = make(map[string]struct{}, len(eventMap)*len(actionMap))
	for e := range reverseEventMap {
		for a := range reverseActionMap {
			allTopics[Topic(e, a)] = struct{}{}
		}
	}
}

// String returns the string representation of an Event.
// Returns empty string for invalid events.
func (e Event) String() string {
	return reverseEventMap[e]
}

// String returns the string representation of an Action.
// Returns empty string for invalid actions.
func (a Action) String() string {
	return reverseActionMap[a]
}

// ParseEvent converts a string to an Event.
func ParseEvent(s string) (Event, bool) {
	e, ok := eventMap[s]

	return e, ok
}

// ParseAction converts a string to an Action.
func ParseAction(s string) (Action, bool) {
	a, ok := actionMap[s]

	return a, ok
}

// AllEvents returns all valid event strings. Order is not guaranteed.
func AllEvents() []string {
	out := make([]string, 0, len(eventMap))
	for s := range eventMap {
		out = append(out, s)
	}

	return out
}

// AllActions returns all valid action strings. Order is not guaranteed.
func AllActions() []string {
	out := make([]string, 0, len(actionMap))
	for s := range actionMap {
		out = append(out, s)
	}

	return out
}

// Topic formats an (event, action) pair as a subscription topic.
func Topic(event Event, action Action) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, event, action)
}

// IsValidTopic reports whether topic is in the precomputed set of
// supported topics.
func IsValidTopic(topic string) bool {
	_, ok := allTopics[topic]

	return ok
}

// ParseTopic splits a topic into its (event, action) pair.
// Returns ErrInvalidTopic when the topic is not in the supported set.
func ParseTopic(topic string) (Event, Action, error) {
	if !IsValidTopic(topic) {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	parts := strings.Split(topic, "/")
	event, _ := ParseEvent(parts[len(parts)-2])
	action, _ := ParseAction(parts[len(parts)-1])

	return event, action, nil
}
