//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_index.go -package=mocks
package repositories

import (
	"context"
	"log/slog"

	"agrilink/domain/messaging"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

type ISearchIndex interface {
	Index(message messaging.Message) error
	Remove(id uuid.UUID) error
	SearchConversation(ctx context.Context, conversationID, query string, offset, limit int) ([]uuid.UUID, uint64, error)
}

// SearchIndex maintains a Bluge full-text index next to the BadgerDB store.
// Only message content is indexed; the authoritative record stays in Badger
// and search results are resolved back through the message repository.
// Conversation ids are indexed as keywords so every query is scoped to one
// thread and threads never leak into each other.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Index(message messaging.Message) error {
	conversationID := messaging.ConversationID(message.SenderID, message.ReceiverID)
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("conversation_id", conversationID)).
		AddField(bluge.NewTextField("content", message.Content)).
		AddField(bluge.NewDateTimeField("created_at", message.CreatedAt))
	return s.writer.Update(doc.ID(), doc)
}

// Remove drops a message from the index. Called on soft delete so deleted
// messages stop matching immediately.
func (s *SearchIndex) Remove(id uuid.UUID) error {
	return s.writer.Delete(bluge.Identifier(id.String()))
}

// SearchConversation runs a case-insensitive match on message content within
// one conversation. Results come back best-match first; the total counts every
// match, not just the returned window.
func (s *SearchIndex) SearchConversation(ctx context.Context, conversationID, query string, offset, limit int) ([]uuid.UUID, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("closing index reader", "error", err)
		}
	}()

	fullQuery := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(conversationID).SetField("conversation_id")).
		AddMust(bluge.NewMatchQuery(query).SetField("content"))

	request := bluge.NewTopNSearch(limit, fullQuery).
		SetFrom(offset).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var ids []uuid.UUID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return ids, iterator.Aggregations().Count(), nil
}
