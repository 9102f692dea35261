package services_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"agrilink/directory"
	"agrilink/domain/messaging"
	apperrors "agrilink/errors"
	"agrilink/mocks"
	"agrilink/services"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newConversationService(t *testing.T) (*services.ConversationService, *mocks.MockIMessageRepository, *mocks.MockIUserDirectory) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	users := mocks.NewMockIUserDirectory(ctrl)
	return services.NewConversationService(repository, users, log), repository, users
}

func threadMessage(sender, receiver, content string, at time.Time, read bool) messaging.Message {
	return messaging.Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Type:       messaging.TypeText,
		IsRead:     read,
		CreatedAt:  at,
	}
}

func TestConversationService_ListConversations(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, repository, users := newConversationService(t)

	at := time.Now().UTC()
	// Newest first, the order the repository guarantees.
	messages := []messaging.Message{
		threadMessage("clara", "alice", "need the invoice", at.Add(3*time.Minute), false),
		threadMessage("bob", "alice", "see you at the market", at.Add(2*time.Minute), false),
		threadMessage("alice", "bob", "loading the truck now", at.Add(time.Minute), false),
		threadMessage("bob", "alice", "early start tomorrow?", at, true),
	}
	repository.EXPECT().ListByParticipant("alice").Return(messages, nil)
	users.EXPECT().Resolve(ctx, "clara").Return(directory.Profile{ID: "clara", Name: "Clara"}, nil)
	users.EXPECT().Resolve(ctx, "bob").Return(directory.Profile{ID: "bob", Name: "Bob"}, nil)

	summaries, err := service.ListConversations(ctx, "alice")
	req.NoError(err)
	req.Len(summaries, 2)

	// Ordered by most recent activity.
	req.Equal("clara", summaries[0].PeerID)
	req.Equal("need the invoice", summaries[0].LastMessage.Content)
	req.Equal(1, summaries[0].UnreadCount)
	req.NotNil(summaries[0].Peer)
	req.Equal("Clara", summaries[0].Peer.Name)

	req.Equal("bob", summaries[1].PeerID)
	req.Equal("see you at the market", summaries[1].LastMessage.Content)
	// One incoming unread; the outgoing and the already-read ones don't count.
	req.Equal(1, summaries[1].UnreadCount)
}

func TestConversationService_ListConversations_Empty(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, repository, _ := newConversationService(t)

	repository.EXPECT().ListByParticipant("alice").Return(nil, nil)

	summaries, err := service.ListConversations(ctx, "alice")
	req.NoError(err)
	req.Empty(summaries)
}

func TestConversationService_Lists_Thread_When_Peer_Lookup_Fails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, repository, users := newConversationService(t)

	at := time.Now().UTC()
	repository.EXPECT().ListByParticipant("alice").Return([]messaging.Message{
		threadMessage("ghost", "alice", "still here", at, false),
	}, nil)
	users.EXPECT().Resolve(ctx, "ghost").Return(directory.Profile{}, apperrors.ErrUserNotFound)

	summaries, err := service.ListConversations(ctx, "alice")
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal("ghost", summaries[0].PeerID)
	req.Nil(summaries[0].Peer)
	req.Equal(1, summaries[0].UnreadCount)
}

func TestConversationService_Last_Message_Can_Be_Outgoing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	service, repository, users := newConversationService(t)

	at := time.Now().UTC()
	repository.EXPECT().ListByParticipant("alice").Return([]messaging.Message{
		threadMessage("alice", "bob", "on my way", at.Add(time.Minute), false),
		threadMessage("bob", "alice", "where are you?", at, false),
	}, nil)
	users.EXPECT().Resolve(ctx, "bob").Return(directory.Profile{ID: "bob"}, nil)

	summaries, err := service.ListConversations(ctx, "alice")
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal("on my way", summaries[0].LastMessage.Content)
	req.Equal(1, summaries[0].UnreadCount)
}
