package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/Tyrowin/chatroom/internal/chat"
)

const (
	messagePrefix = "msg:"
	sequenceKey   = "seq:msg"
	sequenceLease = 128
)

// BadgerStore is a chat.MessageStore backed by BadgerDB.
//
// Each message is stored under "msg:{id}" with the id zero padded to 20
// digits, so a forward prefix scan returns messages in persistence order.
type BadgerStore struct {
	mu     sync.RWMutex
	db     *badger.DB
	seq    *badger.Sequence
	stamp  *stamper
	log    *slog.Logger
	closed bool
}

type diskMessage struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	At       int64  `json:"at"`
}

// OpenBadger opens (or creates) the database at path.
func OpenBadger(path string, log *slog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	s, err := NewBadgerStore(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewBadgerStore wraps an already opened database. Close releases the
// sequence and closes db.
func NewBadgerStore(db *badger.DB, log *slog.Logger) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}

	s := &BadgerStore{db: db, seq: seq, stamp: newStamper(), log: log}
	last, err := s.lastTime()
	if err != nil {
		_ = seq.Release()
		return nil, err
	}
	s.stamp.seed(last)
	return s, nil
}

// Append implements chat.MessageStore.
func (s *BadgerStore) Append(_ context.Context, username, text string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chat.Message{}, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, badger.ErrDBClosed)
	}

	n, err := s.seq.Next()
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: next id: %w", chat.ErrStorageUnavailable, err)
	}

	msg := chat.Message{
		ID:       n + 1,
		Username: username,
		Text:     text,
		Time:     s.stamp.next(),
	}
	value, err := json.Marshal(toDisk(msg))
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: encode: %w", chat.ErrStorageUnavailable, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg.ID), value)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, err)
	}

	s.log.Debug("Message stored", "id", msg.ID, "username", username)
	return msg, nil
}

// ListAll implements chat.MessageStore.
func (s *BadgerStore) ListAll(_ context.Context) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, badger.ErrDBClosed)
	}
	messages, err := ReadAll(s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, err)
	}
	return messages, nil
}

// ReadAll scans every message in db in persistence order. It only reads, so
// it also works on a database opened read-only.
func ReadAll(db *badger.DB) ([]chat.Message, error) {
	var records []diskMessage
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMessage
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &dm)
			})
			if err != nil {
				return err
			}
			records = append(records, dm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(records, func(dm diskMessage, _ int) chat.Message {
		return fromDisk(dm)
	}), nil
}

// Close releases the id lease and closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.seq.Release(); err != nil {
		s.log.Warn("Releasing message sequence failed", "error", err)
	}
	return s.db.Close()
}

func (s *BadgerStore) lastTime() (time.Time, error) {
	var last time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the greatest key <= the seek key.
		prefix := []byte(messagePrefix)
		it.Seek(append([]byte(messagePrefix), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(v []byte) error {
			var dm diskMessage
			if err := json.Unmarshal(v, &dm); err != nil {
				return err
			}
			last = time.Unix(0, dm.At).UTC()
			return nil
		})
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read last message: %w", err)
	}
	return last, nil
}

func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, id))
}

func toDisk(m chat.Message) diskMessage {
	return diskMessage{ID: m.ID, Username: m.Username, Text: m.Text, At: m.Time.UnixNano()}
}

func fromDisk(dm diskMessage) chat.Message {
	return chat.Message{
		ID:       dm.ID,
		Username: dm.Username,
		Text:     dm.Text,
		Time:     time.Unix(0, dm.At).UTC(),
	}
}
