package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

// TopicPrefixStatus is the base for agent status topics.
const TopicPrefixStatus = "presence"

// Topics builds the outbound presence topics for one room.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.NewTopics(cfg.Topics, "bedroom")
//	topics.Owner("aa:bb:cc:dd:ee:ff")
//	// Returns: "location/owner/bedroom/AA:BB:CC:DD:EE:FF"
type Topics struct {
	ownerPrefix    string
	presencePrefix string
	room           string
}

// NewTopics creates a topic builder from the topics config section.
func NewTopics(cfg config.TopicsConfig, room string) Topics {
	return Topics{
		ownerPrefix:    strings.TrimRight(cfg.OwnerPrefix, "/"),
		presencePrefix: strings.TrimRight(cfg.PresencePrefix, "/"),
		room:           room,
	}
}

// Owner returns the topic for the full device record.
// The address is upper-cased so every agent publishes the same topic for
// a device regardless of how it was written in the config.
//
// Example: location/owner/bedroom/AA:BB:CC:DD:EE:FF
func (t Topics) Owner(address string) string {
	return fmt.Sprintf("%s/%s/%s", t.ownerPrefix, t.room, strings.ToUpper(address))
}

// Presence returns the topic for the home/not_home classification.
//
// Example: location/phone
func (t Topics) Presence(name string) string {
	return fmt.Sprintf("%s/%s", t.presencePrefix, name)
}

// Room returns the room identifier the topics are built for.
func (t Topics) Room() string {
	return t.room
}

// StatusTopic returns the online/offline status topic of the agent in a room.
//
// Example: presence/bedroom/status
func StatusTopic(room string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixStatus, room)
}
