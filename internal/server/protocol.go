// Package server maps wire frames to and from the events exchanged between
// clients and the hub.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Tyrowin/roomchat/internal/messages"
)

const (
	frameMessage  = "message"
	frameHistory  = "history"
	frameAck      = "ack"
	frameUsers    = "users"
	frameTyping   = "typing"
	frameReaction = "reaction"
	frameEdit     = "edit"
	frameDelete   = "delete"
)

// ErrMalformedFrame is returned for inbound frames that cannot be mapped to
// an event. Such frames are dropped; the connection stays open.
var ErrMalformedFrame = errors.New("malformed frame")

// Inbound is one decoded client frame: ChatSend, TypingSignal or
// ReactionToggle.
type Inbound interface {
	inbound()
}

// ChatSend is a chat message as sent by a client. ClientID is the
// correlation id echoed back in the ack.
type ChatSend struct {
	Text      string
	Timezone  string
	ClientID  *int64
	FileURL   string
	FileType  string
	FileName  string
	ReplyToID *int64
}

type TypingSignal struct {
	IsTyping bool
}

type ReactionToggle struct {
	MessageID int64
	Emoji     string
}

func (ChatSend) inbound()       {}
func (TypingSignal) inbound()   {}
func (ReactionToggle) inbound() {}

type inboundFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Timezone  string `json:"timezone"`
	ClientID  *int64 `json:"clientId"`
	FileURL   string `json:"fileUrl"`
	FileType  string `json:"fileType"`
	FileName  string `json:"fileName"`
	ReplyToID *int64 `json:"replyToId"`
	IsTyping  bool   `json:"isTyping"`
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// DecodeInbound parses a client frame. A frame without a type is a chat
// message.
func DecodeInbound(raw []byte) (Inbound, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Type {
	case "", frameMessage:
		if strings.TrimSpace(f.Text) == "" && f.FileURL == "" {
			return nil, fmt.Errorf("%w: empty message", ErrMalformedFrame)
		}
		return ChatSend{
			Text:      f.Text,
			Timezone:  f.Timezone,
			ClientID:  f.ClientID,
			FileURL:   f.FileURL,
			FileType:  f.FileType,
			FileName:  f.FileName,
			ReplyToID: f.ReplyToID,
		}, nil
	case frameTyping:
		return TypingSignal{IsTyping: f.IsTyping}, nil
	case frameReaction:
		if f.MessageID <= 0 || f.Emoji == "" {
			return nil, fmt.Errorf("%w: reaction needs messageId and emoji", ErrMalformedFrame)
		}
		return ReactionToggle{MessageID: f.MessageID, Emoji: f.Emoji}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}
}

type historyFrame struct {
	Type     string             `json:"type"`
	Messages []messages.Message `json:"messages"`
}

type ackFrame struct {
	Type     string `json:"type"`
	ClientID int64  `json:"clientId"`
	ID       int64  `json:"id"`
}

type usersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Room  string   `json:"room"`
}

type typingFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type reactionFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId"`
	Emoji     string `json:"emoji"`
	Username  string `json:"username"`
}

type editFrame struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type deleteFrame struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func EncodeHistory(msgs []messages.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []messages.Message{}
	}
	return json.Marshal(historyFrame{Type: frameHistory, Messages: msgs})
}

// EncodeMessage renders a persisted message as a plain frame, which carries
// no type field.
func EncodeMessage(msg messages.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func EncodeAck(clientID, id int64) ([]byte, error) {
	return json.Marshal(ackFrame{Type: frameAck, ClientID: clientID, ID: id})
}

func EncodeUsers(room string, users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return json.Marshal(usersFrame{Type: frameUsers, Users: users, Room: room})
}

func EncodeTyping(username string, isTyping bool) ([]byte, error) {
	return json.Marshal(typingFrame{Type: frameTyping, Username: username, IsTyping: isTyping})
}

func EncodeReaction(messageID int64, emoji, username string) ([]byte, error) {
	return json.Marshal(reactionFrame{Type: frameReaction, MessageID: messageID, Emoji: emoji, Username: username})
}

func EncodeEdit(id int64, text string) ([]byte, error) {
	return json.Marshal(editFrame{Type: frameEdit, ID: id, Text: text})
}

func EncodeDelete(id int64) ([]byte, error) {
	return json.Marshal(deleteFrame{Type: frameDelete, ID: id})
}

// timestampIn returns now expressed in the IANA zone tz. An empty or unknown
// zone falls back to the server's local time.
func timestampIn(tz string, now time.Time) time.Time {
	if tz == "" {
		return now.In(time.Local)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return now.In(time.Local)
	}
	return now.In(loc)
}
