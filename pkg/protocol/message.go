// Package protocol defines the line-oriented wire format shared by the chat
// server and its clients.
package protocol

import (
	"fmt"
	"strings"
)

const (
	// NamePrompt is the first line the server sends on every new connection.
	NamePrompt = "Enter your name:"

	// DefaultName is used when the client answers the prompt with a blank line.
	DefaultName = "Guest"

	// QuitCommand ends a session. Matched case-insensitively.
	QuitCommand = "/quit"

	serverPrefix = "[Server] "
)

// MessageType represents the type of message
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeJoin
	MessageTypeLeave
	MessageTypeWelcome
)

// String returns the string representation of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeJoin:
		return "JOIN"
	case MessageTypeLeave:
		return "LEAVE"
	case MessageTypeWelcome:
		return "WELCOME"
	default:
		return "UNKNOWN"
	}
}

// Message is a single chat line before it is rendered for the wire.
type Message struct {
	Type    MessageType
	Sender  string
	Content string
}

// Text builds a chat message authored by sender.
func Text(sender, content string) Message {
	return Message{Type: MessageTypeText, Sender: sender, Content: content}
}

// Join builds the server announcement for a newly named participant.
func Join(name string) Message {
	return Message{Type: MessageTypeJoin, Sender: name}
}

// Leave builds the server announcement for a departed participant.
func Leave(name string) Message {
	return Message{Type: MessageTypeLeave, Sender: name}
}

// Welcome builds the private greeting sent once the handshake completes.
func Welcome(name string) Message {
	return Message{Type: MessageTypeWelcome, Sender: name}
}

// Line renders the message exactly as it travels on the wire, without the
// line terminator.
func (m Message) Line() string {
	switch m.Type {
	case MessageTypeJoin:
		return fmt.Sprintf("%s%s joined the chat.", serverPrefix, m.Sender)
	case MessageTypeLeave:
		return fmt.Sprintf("%s%s left the chat.", serverPrefix, m.Sender)
	case MessageTypeWelcome:
		return fmt.Sprintf("Welcome, %s. Type %s to exit.", m.Sender, QuitCommand)
	default:
		return m.Sender + ": " + m.Content
	}
}

// ResolveName turns the raw answer to the name prompt into a display name.
func ResolveName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return DefaultName
	}
	return name
}

// IsQuit reports whether line is the quit command.
func IsQuit(line string) bool {
	return strings.EqualFold(line, QuitCommand)
}

// IsServerLine reports whether line was authored by the server rather than a
// participant.
func IsServerLine(line string) bool {
	return strings.HasPrefix(line, serverPrefix)
}
