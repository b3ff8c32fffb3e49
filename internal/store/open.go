package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Tyrowin/chatroom/internal/chat"
)

// Supported drivers.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Store is a message store that owns resources which must be released.
type Store interface {
	chat.MessageStore
	io.Closer
}

// Options selects and configures a store implementation.
type Options struct {
	Driver      string
	BadgerPath  string
	DatabaseURL string
}

// Open returns the store selected by opts.Driver.
func Open(ctx context.Context, opts Options, log *slog.Logger) (Store, error) {
	switch opts.Driver {
	case DriverBadger, "":
		log.Info("Opening badger message store", "path", opts.BadgerPath)
		return OpenBadger(opts.BadgerPath, log)
	case DriverPostgres:
		log.Info("Opening postgres message store")
		return OpenPostgres(ctx, opts.DatabaseURL, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
