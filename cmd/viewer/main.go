// Viewer inspects a Badger message store offline. Without arguments it lists
// the stored conversations; with a conversation key it dumps that backlog.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"campus-dm/domain"
	"campus-dm/internal"
	"campus-dm/logs"
	"campus-dm/repositories"
)

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// BypassLockGuard allows opening while the server holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	logger := logs.GetLoggerFromString("WARN")
	repo := repositories.NewMessageRepository(db, logger, nil)

	if len(os.Args) > 1 {
		dumpConversation(repo, os.Args[1])
		return
	}
	listConversations(repo)
}

func listConversations(repo repositories.IMessageRepository) {
	keys, err := repo.Conversations()
	if err != nil {
		log.Fatalf("Failed to list conversations: %v", err)
	}
	if len(keys) == 0 {
		color.Yellow.Println("No conversations stored.")
		return
	}

	color.Green.Printf("%d conversation(s):\n", len(keys))
	for _, key := range keys {
		fmt.Println("  " + string(key))
	}
	color.Gray.Println("\nPass a key to dump its messages.")
}

func dumpConversation(repo repositories.IMessageRepository, raw string) {
	key, err := domain.ParseKey(raw)
	if err != nil {
		log.Fatalf("Invalid conversation key %q: %v", raw, err)
	}

	messages, err := repo.ListSince(key, 0)
	if err != nil {
		log.Fatalf("Failed to read backlog: %v", err)
	}

	color.Green.Printf("Conversation %s (%d message(s))\n", raw, len(messages))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "Sender", "Text", "Cursor"})
	table.SetAutoWrapText(false)
	for _, msg := range messages {
		table.Append([]string{
			msg.CreatedAt.Format(time.RFC3339Nano),
			msg.SenderID,
			msg.Text,
			fmt.Sprintf("%d", msg.Cursor()),
		})
	}
	table.Render()
}
