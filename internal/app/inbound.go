package app

// InboundMessage is a channel-agnostic inbound message. The web adapter
// builds one from whichever webhook payload arrived.
type InboundMessage struct {
	FromPhone          string
	Text               string
	InteractiveReplyID string
}
