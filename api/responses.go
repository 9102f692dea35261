package api

import (
	"encoding/json"
	"net/http"
	"time"

	"agrilink/directory"
	"agrilink/domain/messaging"
	"agrilink/services"

	"github.com/samber/lo"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

type participantResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Role         string `json:"role,omitempty"`
}

type messageResponse struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversationId"`
	Sender         *participantResponse `json:"sender"`
	Receiver       *participantResponse `json:"receiver"`
	Content        string               `json:"content"`
	MessageType    string               `json:"messageType"`
	Lang           string               `json:"lang,omitempty"`
	FileURL        string               `json:"fileUrl,omitempty"`
	FileName       string               `json:"fileName,omitempty"`
	FileSize       int64                `json:"fileSize,omitempty"`
	IsRead         bool                 `json:"isRead"`
	ReadAt         *time.Time           `json:"readAt,omitempty"`
	IsDeleted      bool                 `json:"isDeleted"`
	DeletedAt      *time.Time           `json:"deletedAt,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

type conversationResponse struct {
	Peer        *participantResponse `json:"user"`
	PeerID      string               `json:"peerId"`
	LastMessage messageResponse      `json:"lastMessage"`
	UnreadCount int                  `json:"unreadCount"`
}

func toParticipant(id string, profile *directory.Profile) *participantResponse {
	response := &participantResponse{ID: id}
	if profile != nil {
		response.Name = profile.Name
		response.ProfileImage = profile.Avatar
		response.Role = profile.Role
	}
	return response
}

func toMessageResponse(view services.MessageView) messageResponse {
	message := view.Message
	return messageResponse{
		ID:             message.ID.String(),
		ConversationID: messaging.ConversationID(message.SenderID, message.ReceiverID),
		Sender:         toParticipant(message.SenderID, view.Sender),
		Receiver:       toParticipant(message.ReceiverID, view.Receiver),
		Content:        message.Content,
		MessageType:    string(message.Type),
		Lang:           message.Lang,
		FileURL:        message.FileURL,
		FileName:       message.FileName,
		FileSize:       message.FileSize,
		IsRead:         message.IsRead,
		ReadAt:         message.ReadAt,
		IsDeleted:      message.IsDeleted,
		DeletedAt:      message.DeletedAt,
		CreatedAt:      message.CreatedAt,
	}
}

func toMessageResponses(views []services.MessageView) []messageResponse {
	return lo.Map(views, func(view services.MessageView, _ int) messageResponse {
		return toMessageResponse(view)
	})
}

func toConversationResponse(summary services.ConversationSummary) conversationResponse {
	return conversationResponse{
		Peer:        toParticipant(summary.PeerID, summary.Peer),
		PeerID:      summary.PeerID,
		LastMessage: toMessageResponse(services.MessageView{Message: summary.LastMessage}),
		UnreadCount: summary.UnreadCount,
	}
}
