package repositories

import (
	"fmt"
	"testing"
	"time"

	"agrilink/domain/messaging"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

// Seeds a realistic store and times the hot read paths. Data is written to
// the shared default path so cmd/inspect can be pointed at it afterwards.
func Test_Conversation_Page_Performance(t *testing.T) {
	if testing.Short() {
		t.Skip("seeding run, skipped in short mode")
	}
	req := require.New(t)
	_, log, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository, err := NewMessageRepository(badgerDB, log)
	req.NoError(err)
	defer repository.Close()

	totalMessages := 20_000
	peers := 100
	viewer := "alice"

	fmt.Printf("Seeding %d messages across %d conversations...\n", totalMessages, peers)
	startSeed := time.Now()
	at := time.Now().UTC()
	for i := 0; i < totalMessages; i++ {
		peer := fmt.Sprintf("peer_%d", i%peers)
		sender, receiver := viewer, peer
		if i%2 == 1 {
			sender, receiver = peer, viewer
		}
		_, err := repository.Store(messaging.Message{
			ID:         uuid.New(),
			SenderID:   sender,
			ReceiverID: receiver,
			Content:    "price update for this week's produce",
			Type:       messaging.TypeText,
			CreatedAt:  at.Add(time.Duration(i) * time.Microsecond),
		})
		req.NoError(err)
	}
	fmt.Printf("Seeded in %s\n", time.Since(startSeed))

	perThread := totalMessages / peers

	startRead := time.Now()
	page, total, err := repository.GetConversationPage(viewer, "peer_0", 0, 50)
	fmt.Printf("First page of a %d-message thread in %s\n", total, time.Since(startRead))
	req.NoError(err)
	req.Equal(perThread, total)
	req.Len(page, 50)

	startDeep := time.Now()
	page, _, err = repository.GetConversationPage(viewer, "peer_0", perThread-10, 50)
	fmt.Printf("Last page in %s\n", time.Since(startDeep))
	req.NoError(err)
	req.Len(page, 10)

	startCount := time.Now()
	unread, err := repository.CountUnread(viewer)
	fmt.Printf("Unread badge over %d entries in %s\n", unread, time.Since(startCount))
	req.NoError(err)
	req.Equal(totalMessages/2, unread)

	startList := time.Now()
	inbox, err := repository.ListByParticipant(viewer)
	fmt.Printf("Full participant listing (%d messages) in %s\n", len(inbox), time.Since(startList))
	req.NoError(err)
	req.Len(inbox, totalMessages)
}
