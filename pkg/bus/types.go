package bus

// InboundMessage is a user message received from a channel, headed for
// the dispatch loop.
type InboundMessage struct {
	Channel     string // source channel name, e.g. "discord"
	SenderID    string
	DisplayName string
	Username    string
	ChatID      string // text channel the message arrived in
	GuildID     string
	Content     string
	Metadata    map[string]string
}

// OutboundMessage is a reply headed from the dispatch loop back to a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
