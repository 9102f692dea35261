//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agrilink/directory"
	"agrilink/domain/messaging"
	apperrors "agrilink/errors"
	"agrilink/moderation"
	"agrilink/observability"
	"agrilink/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageView is a message enriched with the display identity of both
// participants. The enrichment is a read-only join against the user
// directory and is never persisted on the record.
type MessageView struct {
	messaging.Message
	Sender   *directory.Profile
	Receiver *directory.Profile
}

type IMessageService interface {
	Send(ctx context.Context, cmd messaging.SendCommand) (MessageView, error)
	GetConversation(ctx context.Context, cmd messaging.GetConversationCommand) ([]MessageView, int, error)
	MarkRead(ctx context.Context, cmd messaging.MarkReadCommand) (int, error)
	SoftDelete(ctx context.Context, requesterID string, messageID uuid.UUID) error
	UnreadCount(ctx context.Context, viewerID string) (int, error)
	SearchConversation(ctx context.Context, cmd messaging.SearchCommand) ([]MessageView, uint64, error)
}

type MessageService struct {
	repository repositories.IMessageRepository
	index      repositories.ISearchIndex
	users      directory.IUserDirectory
	moderator  *moderation.Moderator
	monitor    *observability.Monitor
	log        *slog.Logger
}

// NewMessageService wires the messaging core. The moderator is optional:
// a nil moderator means no censoring is configured.
func NewMessageService(
	repository repositories.IMessageRepository,
	index repositories.ISearchIndex,
	users directory.IUserDirectory,
	moderator *moderation.Moderator,
	monitor *observability.Monitor,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		repository: repository,
		index:      index,
		users:      users,
		moderator:  moderator,
		monitor:    monitor,
		log:        log,
	}
}

// Send validates the command, resolves the receiver through the directory and
// persists the message. All checks run before any side effect, so a failed
// send leaves no partial state behind.
func (s *MessageService) Send(ctx context.Context, cmd messaging.SendCommand) (MessageView, error) {
	content := strings.TrimSpace(cmd.Content)
	if err := validateSend(cmd, content); err != nil {
		return MessageView{}, err
	}

	receiver, err := s.users.Resolve(ctx, cmd.ReceiverID)
	if err != nil {
		return MessageView{}, err
	}

	if s.moderator != nil && content != "" {
		content = s.moderator.Censor(content)
	}

	message := messaging.Message{
		ID:         uuid.New(),
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Content:    content,
		Type:       cmd.Type,
		CreatedAt:  cmd.CreatedAt,
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	if message.Type == messaging.TypeText {
		info := whatlanggo.Detect(content)
		message.Lang = info.Lang.Iso6391()
	}
	if cmd.File != nil {
		message.FileURL = cmd.File.URL
		message.FileName = cmd.File.Name
		message.FileSize = cmd.File.Size
	}

	stored, err := s.repository.Store(message)
	if err != nil {
		return MessageView{}, fmt.Errorf("storing message: %w", err)
	}
	s.monitor.IncrSent()

	// Search indexing is best effort: a missing index entry loses a search
	// hit, not a message.
	if stored.Content != "" {
		if err := s.index.Index(stored); err != nil {
			s.log.Warn("failed to index message", "message_id", stored.ID, "error", err)
		}
	}

	return MessageView{
		Message:  stored,
		Sender:   s.lookup(ctx, stored.SenderID),
		Receiver: lo.ToPtr(receiver),
	}, nil
}

// GetConversation returns one page of the thread with the peer. The peer must
// exist in the directory (ErrUserNotFound otherwise). Pages are cut on
// most-recent-first order, but each page is returned oldest first so a client
// rendering top to bottom reads naturally. The reversal is part of the
// contract: page boundaries are computed on the descending order.
func (s *MessageService) GetConversation(ctx context.Context, cmd messaging.GetConversationCommand) ([]MessageView, int, error) {
	if cmd.Page < 1 || cmd.PageSize < 1 {
		return nil, 0, apperrors.ErrInvalidPaging
	}
	if cmd.ViewerID == cmd.PeerID {
		return nil, 0, apperrors.ErrSameParticipant
	}
	if _, err := s.users.Resolve(ctx, cmd.PeerID); err != nil {
		return nil, 0, err
	}

	offset := (cmd.Page - 1) * cmd.PageSize
	page, total, err := s.repository.GetConversationPage(cmd.ViewerID, cmd.PeerID, offset, cmd.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching conversation: %w", err)
	}

	return s.enrich(ctx, lo.Reverse(page)), total, nil
}

// MarkRead flips every unread message from the peer in one atomic update and
// reports how many transitioned. Calling it again with nothing left unread
// returns zero.
func (s *MessageService) MarkRead(_ context.Context, cmd messaging.MarkReadCommand) (int, error) {
	if cmd.ViewerID == cmd.PeerID {
		return 0, apperrors.ErrSameParticipant
	}
	count, err := s.repository.MarkConversationRead(cmd.ViewerID, cmd.PeerID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}
	s.monitor.AddRead(count)
	return count, nil
}

// SoftDelete hides a message from every view while keeping the record.
// Only the original sender may delete; the check happens before any write.
func (s *MessageService) SoftDelete(_ context.Context, requesterID string, messageID uuid.UUID) error {
	message, err := s.repository.GetByID(messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return apperrors.ErrNotMessageSender
	}
	if message.IsDeleted {
		return nil
	}

	if _, err := s.repository.SoftDelete(messageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	s.monitor.IncrDeleted()

	if err := s.index.Remove(messageID); err != nil {
		s.log.Warn("failed to drop message from index", "message_id", messageID, "error", err)
	}
	return nil
}

func (s *MessageService) UnreadCount(_ context.Context, viewerID string) (int, error) {
	return s.repository.CountUnread(viewerID)
}

// SearchConversation finds messages by content within a single thread.
// Soft-deleted messages are dropped from the index on delete, so they do not
// match; a stale hit that slips through is filtered on resolution.
func (s *MessageService) SearchConversation(ctx context.Context, cmd messaging.SearchCommand) ([]MessageView, uint64, error) {
	if strings.TrimSpace(cmd.Query) == "" {
		return nil, 0, apperrors.ErrEmptyQuery
	}
	if cmd.Page < 1 || cmd.PageSize < 1 {
		return nil, 0, apperrors.ErrInvalidPaging
	}
	if cmd.ViewerID == cmd.PeerID {
		return nil, 0, apperrors.ErrSameParticipant
	}

	conversationID := messaging.ConversationID(cmd.ViewerID, cmd.PeerID)
	offset := (cmd.Page - 1) * cmd.PageSize
	ids, total, err := s.index.SearchConversation(ctx, conversationID, cmd.Query, offset, cmd.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("searching conversation: %w", err)
	}
	s.monitor.IncrSearches()

	var messages []messaging.Message
	for _, id := range ids {
		message, err := s.repository.GetByID(id)
		if err != nil {
			return nil, 0, err
		}
		if message.IsDeleted {
			continue
		}
		messages = append(messages, message)
	}
	return s.enrich(ctx, messages), total, nil
}

// enrich attaches sender/receiver profiles, resolving each participant once.
// A failed lookup yields a nil profile instead of an error: directory
// unavailability must never hide messages.
func (s *MessageService) enrich(ctx context.Context, messages []messaging.Message) []MessageView {
	profiles := make(map[string]*directory.Profile)
	resolve := func(id string) *directory.Profile {
		if profile, ok := profiles[id]; ok {
			return profile
		}
		profile := s.lookup(ctx, id)
		profiles[id] = profile
		return profile
	}

	return lo.Map(messages, func(message messaging.Message, _ int) MessageView {
		return MessageView{
			Message:  message,
			Sender:   resolve(message.SenderID),
			Receiver: resolve(message.ReceiverID),
		}
	})
}

func (s *MessageService) lookup(ctx context.Context, id string) *directory.Profile {
	profile, err := s.users.Resolve(ctx, id)
	if err != nil {
		s.log.Debug("directory lookup failed", "user_id", id, "error", err)
		return nil
	}
	return &profile
}

func validateSend(cmd messaging.SendCommand, content string) error {
	if !cmd.Type.Valid() {
		return apperrors.ErrInvalidMessageType
	}
	if cmd.SenderID == cmd.ReceiverID {
		return apperrors.ErrSameParticipant
	}
	if len([]rune(content)) > messaging.MaxContentLength {
		return apperrors.ErrContentTooLong
	}
	if cmd.Type == messaging.TypeText {
		if content == "" {
			return apperrors.ErrEmptyContent
		}
		if cmd.File != nil {
			return apperrors.ErrUnexpectedFile
		}
	}
	return nil
}
