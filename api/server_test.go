package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agrilink/auth"
	"agrilink/directory"
	"agrilink/domain/messaging"
	apperrors "agrilink/errors"
	"agrilink/mocks"
	"agrilink/observability"
	"agrilink/services"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testSecret = []byte("server-test-secret")

type serverMocks struct {
	messages      *mocks.MockIMessageService
	conversations *mocks.MockIConversationService
	users         *mocks.MockIUserDirectory
}

func newTestServer(t *testing.T) (*Server, serverMocks) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	deps := serverMocks{
		messages:      mocks.NewMockIMessageService(ctrl),
		conversations: mocks.NewMockIConversationService(ctrl),
		users:         mocks.NewMockIUserDirectory(ctrl),
	}
	server := NewServer(log, deps.messages, deps.conversations, deps.users,
		observability.NewMonitor(log), testSecret, 20, 100)
	return server, deps
}

func authedRequest(t *testing.T, method, target, body, userID string, roles ...string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, roles, time.Hour)
	require.NoError(t, err)

	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Authorization", "Bearer "+token)
	return request
}

func doRequest(server *Server, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, request)
	return recorder
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	return body
}

func Test_Protected_Routes_Require_Token(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	recorder := doRequest(server, httptest.NewRequest(http.MethodGet, "/api/message/unread-count", nil))
	req.Equal(http.StatusUnauthorized, recorder.Code)
	body := decodeEnvelope(t, recorder)
	req.False(body.Success)
	req.NotEmpty(body.Error)
}

func Test_Protected_Routes_Reject_Bad_Token(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	request := httptest.NewRequest(http.MethodGet, "/api/message/unread-count", nil)
	request.Header.Set("Authorization", "Bearer this-is-not-a-token")
	recorder := doRequest(server, request)
	req.Equal(http.StatusUnauthorized, recorder.Code)
}

func Test_Send_Message(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	view := services.MessageView{
		Message: messaging.Message{
			ID:         uuid.New(),
			SenderID:   "alice",
			ReceiverID: "bob",
			Content:    "the apples are ready",
			Type:       messaging.TypeText,
			CreatedAt:  time.Now().UTC(),
		},
	}
	deps.messages.EXPECT().Send(gomock.Any(), messaging.SendCommand{
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "the apples are ready",
		Type:       messaging.TypeText,
	}).Return(view, nil)

	request := authedRequest(t, http.MethodPost, "/api/message/send",
		`{"receiver":"bob","content":"the apples are ready"}`, "alice")
	recorder := doRequest(server, request)

	req.Equal(http.StatusCreated, recorder.Code)
	body := decodeEnvelope(t, recorder)
	req.True(body.Success)
	req.Equal("Message sent successfully", body.Message)

	data := body.Data.(map[string]any)
	message := data["message"].(map[string]any)
	req.Equal(view.ID.String(), message["id"])
	req.Equal("alice_bob", message["conversationId"])
	req.Equal("text", message["messageType"])
}

func Test_Send_Message_Rejects_Unknown_Type(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	request := authedRequest(t, http.MethodPost, "/api/message/send",
		`{"receiver":"bob","content":"x","messageType":"video"}`, "alice")
	recorder := doRequest(server, request)
	req.Equal(http.StatusBadRequest, recorder.Code)
}

func Test_Send_Message_Maps_Domain_Errors(t *testing.T) {
	tests := []struct {
		description string
		err         error
		wantStatus  int
	}{
		{"Should map empty content to 400", apperrors.ErrEmptyContent, http.StatusBadRequest},
		{"Should map unknown receiver to 404", apperrors.ErrUserNotFound, http.StatusNotFound},
		{"Should map infrastructure failure to 500", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			server, deps := newTestServer(t)

			deps.messages.EXPECT().Send(gomock.Any(), gomock.Any()).
				Return(services.MessageView{}, tt.err)

			request := authedRequest(t, http.MethodPost, "/api/message/send",
				`{"receiver":"bob","content":"hello"}`, "alice")
			recorder := doRequest(server, request)
			req.Equal(tt.wantStatus, recorder.Code)

			body := decodeEnvelope(t, recorder)
			req.False(body.Success)
			if tt.wantStatus == http.StatusInternalServerError {
				// Internal detail never leaks onto the wire.
				req.Equal("internal server error", body.Error)
			}
		})
	}
}

func Test_Get_Conversation(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	deps.messages.EXPECT().GetConversation(gomock.Any(), messaging.GetConversationCommand{
		ViewerID: "alice",
		PeerID:   "bob",
		Page:     2,
		PageSize: 10,
	}).Return([]services.MessageView{}, 25, nil)

	request := authedRequest(t, http.MethodGet, "/api/message/conversation/bob?page=2&limit=10", "", "alice")
	recorder := doRequest(server, request)

	req.Equal(http.StatusOK, recorder.Code)
	body := decodeEnvelope(t, recorder)
	req.True(body.Success)
	data := body.Data.(map[string]any)
	req.Equal(float64(25), data["total"])
	req.Equal(float64(3), data["totalPages"])
	req.Equal(float64(2), data["currentPage"])
}

func Test_Get_Conversation_Rejects_Bad_Paging(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	for _, target := range []string{
		"/api/message/conversation/bob?page=zero",
		"/api/message/conversation/bob?page=0",
		"/api/message/conversation/bob?limit=0",
		"/api/message/conversation/bob?limit=101",
	} {
		recorder := doRequest(server, authedRequest(t, http.MethodGet, target, "", "alice"))
		req.Equal(http.StatusBadRequest, recorder.Code)
	}
}

func Test_List_Conversations(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	deps.conversations.EXPECT().ListConversations(gomock.Any(), "alice").
		Return([]services.ConversationSummary{
			{
				PeerID:      "bob",
				Peer:        &directory.Profile{ID: "bob", Name: "Bob"},
				LastMessage: messaging.Message{ID: uuid.New(), SenderID: "bob", ReceiverID: "alice", Content: "hi"},
				UnreadCount: 2,
			},
		}, nil)

	recorder := doRequest(server, authedRequest(t, http.MethodGet, "/api/message/conversations", "", "alice"))
	req.Equal(http.StatusOK, recorder.Code)

	body := decodeEnvelope(t, recorder)
	data := body.Data.(map[string]any)
	conversations := data["conversations"].([]any)
	req.Len(conversations, 1)
	first := conversations[0].(map[string]any)
	req.Equal("bob", first["peerId"])
	req.Equal(float64(2), first["unreadCount"])
	peer := first["user"].(map[string]any)
	req.Equal("Bob", peer["name"])
}

func Test_Search_Conversation(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	deps.messages.EXPECT().SearchConversation(gomock.Any(), messaging.SearchCommand{
		ViewerID: "alice",
		PeerID:   "bob",
		Query:    "wheat",
		Page:     1,
		PageSize: 20,
	}).Return([]services.MessageView{}, uint64(0), nil)

	recorder := doRequest(server, authedRequest(t, http.MethodGet, "/api/message/search/bob?q=wheat", "", "alice"))
	req.Equal(http.StatusOK, recorder.Code)
}

func Test_Mark_Read(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	deps.messages.EXPECT().MarkRead(gomock.Any(), messaging.MarkReadCommand{
		ViewerID: "alice",
		PeerID:   "bob",
	}).Return(3, nil)

	recorder := doRequest(server, authedRequest(t, http.MethodPut, "/api/message/read/bob", "", "alice"))
	req.Equal(http.StatusOK, recorder.Code)

	body := decodeEnvelope(t, recorder)
	req.True(body.Success)
	req.Equal("Messages marked as read", body.Message)
	data := body.Data.(map[string]any)
	req.Equal(float64(3), data["count"])
}

func Test_Soft_Delete(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	id := uuid.New()
	deps.messages.EXPECT().SoftDelete(gomock.Any(), "alice", id).Return(nil)

	recorder := doRequest(server, authedRequest(t, http.MethodDelete, "/api/message/"+id.String(), "", "alice"))
	req.Equal(http.StatusOK, recorder.Code)
}

func Test_Soft_Delete_Invalid_ID(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	recorder := doRequest(server, authedRequest(t, http.MethodDelete, "/api/message/not-a-uuid", "", "alice"))
	req.Equal(http.StatusNotFound, recorder.Code)
}

func Test_Soft_Delete_Requires_Sender(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	id := uuid.New()
	deps.messages.EXPECT().SoftDelete(gomock.Any(), "mallory", id).
		Return(apperrors.ErrNotMessageSender)

	recorder := doRequest(server, authedRequest(t, http.MethodDelete, "/api/message/"+id.String(), "", "mallory"))
	req.Equal(http.StatusForbidden, recorder.Code)
}

func Test_Unread_Count(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	deps.messages.EXPECT().UnreadCount(gomock.Any(), "alice").Return(7, nil)

	recorder := doRequest(server, authedRequest(t, http.MethodGet, "/api/message/unread-count", "", "alice"))
	req.Equal(http.StatusOK, recorder.Code)

	body := decodeEnvelope(t, recorder)
	data := body.Data.(map[string]any)
	req.Equal(float64(7), data["unreadCount"])
}

func Test_Directory_Sync_Requires_Admin(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	request := authedRequest(t, http.MethodPost, "/api/directory/sync",
		`{"id":"bob","name":"Bob"}`, "alice", "farmer")
	recorder := doRequest(server, request)
	req.Equal(http.StatusForbidden, recorder.Code)
}

func Test_Directory_Sync(t *testing.T) {
	req := require.New(t)
	server, deps := newTestServer(t)

	deps.users.EXPECT().Upsert(gomock.Any(), directory.Profile{ID: "bob", Name: "Bob"}).Return(nil)

	request := authedRequest(t, http.MethodPost, "/api/directory/sync",
		`{"id":"bob","name":"Bob"}`, "root", "admin")
	recorder := doRequest(server, request)
	req.Equal(http.StatusOK, recorder.Code)
}

func Test_Healthz_Is_Open(t *testing.T) {
	req := require.New(t)
	server, _ := newTestServer(t)

	recorder := doRequest(server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, recorder.Code)

	body := decodeEnvelope(t, recorder)
	req.True(body.Success)
	data := body.Data.(map[string]any)
	req.Contains(data, "messages_sent")
	req.Contains(data, "uptime")
}
