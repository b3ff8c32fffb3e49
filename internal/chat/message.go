package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemUsername is the author of server-generated notices.
const SystemUsername = "Admin"

const welcomeText = "Welcome to Chat App!"

// ConnID identifies one live network session.
type ConnID string

// NewConnID returns a fresh random connection id.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Connection is the registry's record of a session. Values handed out by the
// Registry are copies; changing them has no effect on the registry.
type Connection struct {
	ID          ConnID
	Username    string
	ConnectedAt time.Time
}

// Bound reports whether a username has been bound to the connection.
func (c Connection) Bound() bool {
	return c.Username != ""
}

// Message is a chat entry. Persisted messages are immutable.
type Message struct {
	ID       uint64    `json:"-"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// UserPayload is the data of typing and stopTyping events.
type UserPayload struct {
	Username string `json:"username"`
}

func systemMessage(text string, at time.Time) Message {
	return Message{Username: SystemUsername, Text: text, Time: at}
}

func welcomeMessage(at time.Time) Message {
	return systemMessage(welcomeText, at)
}

func arrivalMessage(username string, at time.Time) Message {
	return systemMessage(fmt.Sprintf("%s has joined the chat", username), at)
}

func departureMessage(username string, at time.Time) Message {
	return systemMessage(fmt.Sprintf("%s has left the chat", username), at)
}
