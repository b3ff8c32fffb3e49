//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package chat

import "context"

// MessageStore is the durable, append-only log of chat messages.
//
// Append assigns the id and timestamp at the moment of persistence and must
// either persist the whole record or nothing. Failures are reported wrapped in
// ErrStorageUnavailable. ListAll returns messages in persistence order and may
// run concurrently with Append.
type MessageStore interface {
	Append(ctx context.Context, username, text string) (Message, error)
	ListAll(ctx context.Context) ([]Message, error)
}

// Sink receives encoded outbound frames for a single connection.
// Deliver must not block; it reports false when the frame was not accepted.
type Sink interface {
	Deliver(frame []byte) bool
}
