package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"agrilink/domain/messaging"
	"agrilink/internal"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// inspect opens the message store read-only and prints a per-conversation
// summary. It can run while the server holds the lock.
func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	summaries, total, err := collect(db)
	if err != nil {
		log.Fatalf("Failed to scan store: %v", err)
	}

	color.Bold.Printf("Message store: %s\n", config.BadgerFilepath)
	color.Cyan.Printf("%d message(s) across %d conversation(s)\n\n", total, len(summaries))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Conversation", "Messages", "Deleted", "Unread", "Last activity"})
	for _, s := range summaries {
		table.Append([]string{
			s.conversationID,
			fmt.Sprintf("%d", s.messages),
			fmt.Sprintf("%d", s.deleted),
			fmt.Sprintf("%d", s.unread),
			s.lastActivity.Format(time.RFC822),
		})
	}
	table.Render()
}

type summary struct {
	conversationID string
	messages       int
	deleted        int
	unread         int
	lastActivity   time.Time
}

// storedMessage mirrors the repository's on-disk record; only the fields the
// inspector needs are decoded.
type storedMessage struct {
	SenderID   string `json:"sender"`
	ReceiverID string `json:"receiver"`
	IsRead     bool   `json:"isRead"`
	IsDeleted  bool   `json:"isDeleted"`
	CreatedAt  int64  `json:"createdAt"`
}

func collect(db *badger.DB) ([]summary, int, error) {
	groups := make(map[string]*summary)
	total := 0

	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedMessage
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &stored)
			}); err != nil {
				return err
			}
			total++

			id := messaging.ConversationID(stored.SenderID, stored.ReceiverID)
			entry, ok := groups[id]
			if !ok {
				entry = &summary{conversationID: id}
				groups[id] = entry
			}
			entry.messages++
			if stored.IsDeleted {
				entry.deleted++
			} else if !stored.IsRead {
				entry.unread++
			}
			at := time.Unix(0, stored.CreatedAt).UTC()
			if at.After(entry.lastActivity) {
				entry.lastActivity = at
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]summary, 0, len(groups))
	for _, entry := range groups {
		summaries = append(summaries, *entry)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].lastActivity.After(summaries[j].lastActivity)
	})
	return summaries, total, nil
}
