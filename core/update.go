package core

import (
	"encoding/json"
	"time"
)

// Update is one item returned by getUpdates.
type Update struct {
	UpdateID *int64   `json:"update_id"`
	Message  *Message `json:"message"`

	// Raw holds the update exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Message is the subset of a Telegram message the core reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      *Chat  `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// ParseUpdate decodes a single update. update_id and message are decoded
// separately: one with the wrong JSON type is left nil, so the update is
// still dispatched with sentinel identifiers instead of failing the batch.
// Inside a message, mismatched fields keep their zero value.
func ParseUpdate(raw json.RawMessage) Update {
	u := Update{Raw: raw}

	var fields struct {
		UpdateID json.RawMessage `json:"update_id"`
		Message  json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return u
	}

	// Unmarshal allocates the pointer before reporting a type error.
	if err := json.Unmarshal(fields.UpdateID, &u.UpdateID); err != nil {
		u.UpdateID = nil
	}
	if isObject(fields.Message) {
		_ = json.Unmarshal(fields.Message, &u.Message)
	}
	return u
}

func isObject(v json.RawMessage) bool {
	return len(v) > 0 && v[0] == '{'
}

// ID returns the update_id, or -1 when it is missing.
func (u Update) ID() int64 {
	if u.UpdateID == nil {
		return -1
	}
	return *u.UpdateID
}

// ChatID returns the sender's chat id (message.from.id). ok is false when
// the message or its sender is missing.
func (u Update) ChatID() (id int64, ok bool) {
	if u.Message == nil || u.Message.From == nil || u.Message.From.ID == 0 {
		return 0, false
	}
	return u.Message.From.ID, true
}

// MessageID returns message.message_id, or 0 when there is no message.
func (u Update) MessageID() int64 {
	if u.Message == nil {
		return 0
	}
	return u.Message.MessageID
}

// Text returns the message text, or "" when there is no message.
func (u Update) Text() string {
	if u.Message == nil {
		return ""
	}
	return u.Message.Text
}

// Time returns the message date, or the zero time when unknown.
func (u Update) Time() time.Time {
	if u.Message == nil || u.Message.Date == 0 {
		return time.Time{}
	}
	return time.Unix(u.Message.Date, 0)
}
