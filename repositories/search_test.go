package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"agrilink/domain/messaging"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewSearchIndex(writer, slog.Default())
}

func indexedMessage(sender, receiver, content string) messaging.Message {
	return messaging.Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Type:       messaging.TypeText,
		CreatedAt:  time.Now().UTC(),
	}
}

func Test_Search_Matches_Case_Insensitively(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	message := indexedMessage("alice", "bob", "The Wheat Delivery arrives Tuesday")
	req.NoError(index.Index(message))

	conversationID := messaging.ConversationID("alice", "bob")
	ids, total, err := index.SearchConversation(context.Background(), conversationID, "wheat", 0, 10)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(ids, 1)
	req.Equal(message.ID, ids[0])
}

func Test_Search_Is_Scoped_To_One_Conversation(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	inThread := indexedMessage("alice", "bob", "fertilizer prices went up")
	elsewhere := indexedMessage("alice", "clara", "fertilizer order confirmed")
	req.NoError(index.Index(inThread))
	req.NoError(index.Index(elsewhere))

	conversationID := messaging.ConversationID("bob", "alice")
	ids, total, err := index.SearchConversation(context.Background(), conversationID, "fertilizer", 0, 10)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(ids, 1)
	req.Equal(inThread.ID, ids[0])
}

func Test_Search_After_Remove(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	message := indexedMessage("alice", "bob", "seed catalogue attached")
	req.NoError(index.Index(message))
	req.NoError(index.Remove(message.ID))

	conversationID := messaging.ConversationID("alice", "bob")
	ids, total, err := index.SearchConversation(context.Background(), conversationID, "catalogue", 0, 10)
	req.NoError(err)
	req.Equal(uint64(0), total)
	req.Empty(ids)
}

func Test_Search_Window_And_Total(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	for range 5 {
		req.NoError(index.Index(indexedMessage("alice", "bob", "irrigation schedule update")))
	}

	conversationID := messaging.ConversationID("alice", "bob")
	ids, total, err := index.SearchConversation(context.Background(), conversationID, "irrigation", 3, 2)
	req.NoError(err)
	req.Equal(uint64(5), total)
	req.Len(ids, 2)
}
