package core

// Reply is an outbound text message.
type Reply struct {
	ChatID    int64
	MessageID int64
	Text      string

	// Threaded links the reply to MessageID in the chat client.
	Threaded bool
}

// NewReply targets the sender of u. ok is false when the update carries no
// sender, in which case there is nowhere to reply to.
func NewReply(u Update, text string, threaded bool) (r Reply, ok bool) {
	chatID, ok := u.ChatID()
	if !ok {
		return Reply{}, false
	}
	return Reply{
		ChatID:    chatID,
		MessageID: u.MessageID(),
		Text:      text,
		Threaded:  threaded,
	}, true
}
