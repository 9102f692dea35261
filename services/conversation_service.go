//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"

	"agrilink/directory"
	"agrilink/domain/messaging"
	"agrilink/repositories"
)

// ConversationSummary is one entry of a user's conversation list.
// Peer is nil when the directory lookup failed; the conversation itself is
// still listed, because directory unavailability must not hide a thread.
type ConversationSummary struct {
	PeerID      string
	Peer        *directory.Profile
	LastMessage messaging.Message
	UnreadCount int
}

type IConversationService interface {
	ListConversations(ctx context.Context, viewerID string) ([]ConversationSummary, error)
}

// ConversationService builds the per-user conversation list by grouping the
// viewer's live messages by peer. The repository hands messages back in
// descending (timestamp, sequence) order, so the first message seen for a
// peer is that thread's last message, and first-seen order of peers is
// already the required sort order of the result.
type ConversationService struct {
	repository repositories.IMessageRepository
	users      directory.IUserDirectory
	log        *slog.Logger
}

func NewConversationService(repository repositories.IMessageRepository,
	users directory.IUserDirectory, log *slog.Logger) *ConversationService {
	return &ConversationService{repository: repository, users: users, log: log}
}

func (s *ConversationService) ListConversations(ctx context.Context, viewerID string) ([]ConversationSummary, error) {
	messages, err := s.repository.ListByParticipant(viewerID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	groups := make(map[string]*ConversationSummary)
	var order []string
	for _, message := range messages {
		peerID := message.Peer(viewerID)
		entry, seen := groups[peerID]
		if !seen {
			entry = &ConversationSummary{PeerID: peerID, LastMessage: message}
			groups[peerID] = entry
			order = append(order, peerID)
		}
		if message.ReceiverID == viewerID && !message.IsRead {
			entry.UnreadCount++
		}
	}

	summaries := make([]ConversationSummary, 0, len(order))
	for _, peerID := range order {
		entry := groups[peerID]
		profile, err := s.users.Resolve(ctx, peerID)
		if err != nil {
			s.log.Warn("peer lookup failed, listing conversation without identity",
				"peer_id", peerID, "error", err)
		} else {
			entry.Peer = &profile
		}
		summaries = append(summaries, *entry)
	}
	return summaries, nil
}
