package realtime

import "strconv"

type ChannelKind int

const (
	KindMessages ChannelKind = iota + 1
	KindConnections
	KindNotifications
	KindFeed
	KindOnline
)

var kindNames = map[ChannelKind]string{
	KindMessages:      "messages",
	KindConnections:   "connections",
	KindNotifications: "notifications",
	KindFeed:          "feed",
	KindOnline:        "online",
}

func (k ChannelKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Channel names a broadcast topic. ID is only meaningful for KindMessages,
// where it carries the conversation id.
type Channel struct {
	Kind ChannelKind
	ID   int
}

var (
	Connections   = Channel{Kind: KindConnections}
	Notifications = Channel{Kind: KindNotifications}
	Feed          = Channel{Kind: KindFeed}
	Online        = Channel{Kind: KindOnline}
)

// Messages returns the chat channel of one conversation.
func Messages(conversationID int) Channel {
	return Channel{Kind: KindMessages, ID: conversationID}
}

func (c Channel) String() string {
	if c.Kind == KindMessages {
		return c.Kind.String() + ":" + strconv.Itoa(c.ID)
	}
	return c.Kind.String()
}

// IsChat reports whether frames on this channel may carry chat operations.
func (c Channel) IsChat() bool { return c.Kind == KindMessages }
