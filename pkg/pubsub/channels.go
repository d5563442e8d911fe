package pubsub

import "fmt"

// Channel naming conventions for the chat backplane.
const (
	// ChannelRoomEvents carries hub fan-out events for one room.
	ChannelRoomEvents = "chat:room:%s:events"

	// ChannelPatternAllRooms subscribes an instance to every room's events.
	ChannelPatternAllRooms = "chat:room:*:events"
)

// RoomEventsChannel returns the backplane channel name for a room.
func RoomEventsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomEvents, roomID)
}
