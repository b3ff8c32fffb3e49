// Package store provides the durable implementations of chat.MessageStore.
//
// BadgerStore keeps the log in an embedded badger database and is the default.
// PostgresStore keeps it in a PostgreSQL table through a pgx pool. Both
// serialize appends so that ids, timestamps and listing order agree.
package store
