package events

import (
	"fmt"
	"strconv"
	"strings"
)

// Room name prefixes
const (
	RoomPrefixConversation = "conv_"
	RoomPrefixUser         = "user_"
)

// RelayChannelPrefix namespaces room traffic on the cross-node relay.
const RelayChannelPrefix = "socialhub:room:"

// ConversationRoom is the broadcast group of a conversation.
func ConversationRoom(conversationID int64) string {
	return fmt.Sprintf("%s%d", RoomPrefixConversation, conversationID)
}

// UserRoom is the personal channel joined by every session of a user.
func UserRoom(userID int64) string {
	return fmt.Sprintf("%s%d", RoomPrefixUser, userID)
}

// ParseConversationRoom extracts the conversation id from a room name.
func ParseConversationRoom(room string) (int64, bool) {
	return parseRoom(room, RoomPrefixConversation)
}

func parseRoom(room, prefix string) (int64, bool) {
	if !strings.HasPrefix(room, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(room, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RelayChannel maps a room to its relay channel.
func RelayChannel(room string) string {
	return RelayChannelPrefix + room
}

// RoomFromRelayChannel is the inverse of RelayChannel.
func RoomFromRelayChannel(channel string) string {
	return strings.TrimPrefix(channel, RelayChannelPrefix)
}

// BroadcastRoom addresses every local session; used for presence.
const BroadcastRoom = "all"
