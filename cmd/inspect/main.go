// Command inspect prints the chat history kept in a badger message store.
// It opens the database read-only, so it can run next to a live server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/Tyrowin/chatroom/internal/chat"
	"github.com/Tyrowin/chatroom/internal/store"
)

func main() {
	dbPath := flag.String("db", "./data/chat", "Path to badger DB")
	limit := flag.Int("tail", 0, "Only show the last N messages (0 shows all)")
	user := flag.String("user", "", "Only show messages from this username")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	messages, err := store.ReadAll(db)
	if err != nil {
		log.Fatal(err)
	}
	if *user != "" {
		messages = lo.Filter(messages, func(m chat.Message, _ int) bool {
			return m.Username == *user
		})
	}
	if *limit > 0 && len(messages) > *limit {
		messages = messages[len(messages)-*limit:]
	}

	render(messages)
	fmt.Printf("%d message(s)\n", len(messages))
}

func render(messages []chat.Message) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Time", "Username", "Text"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		username := color.Cyan.Sprint(m.Username)
		if m.Username == chat.SystemUsername {
			username = color.Gray.Sprint(m.Username)
		}
		table.Append([]string{
			strconv.FormatUint(m.ID, 10),
			m.Time.Local().Format("2006-01-02 15:04:05.000"),
			username,
			m.Text,
		})
	}
	table.Render()
}
