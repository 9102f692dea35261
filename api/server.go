package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"agrilink/directory"
	"agrilink/domain/messaging"
	apperrors "agrilink/errors"
	"agrilink/observability"
	"agrilink/services"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// adminRole may push directory profiles through the sync endpoint.
const adminRole = "admin"

type Server struct {
	log           *slog.Logger
	messages      services.IMessageService
	conversations services.IConversationService
	users         directory.IUserDirectory
	monitor       *observability.Monitor
	validate      *validator.Validate
	secret        []byte

	defaultPageSize int
	maxPageSize     int
}

func NewServer(
	log *slog.Logger,
	messages services.IMessageService,
	conversations services.IConversationService,
	users directory.IUserDirectory,
	monitor *observability.Monitor,
	secret []byte,
	defaultPageSize, maxPageSize int,
) *Server {
	return &Server{
		log:             log,
		messages:        messages,
		conversations:   conversations,
		users:           users,
		monitor:         monitor,
		validate:        validator.New(),
		secret:          secret,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Router assembles the HTTP surface. Everything under /api requires a valid
// bearer token; /healthz stays open for probes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(s.secret))
	protected.HandleFunc("/message/send", s.handleSend).Methods(http.MethodPost)
	protected.HandleFunc("/message/conversations", s.handleListConversations).Methods(http.MethodGet)
	protected.HandleFunc("/message/conversation/{userId}", s.handleGetConversation).Methods(http.MethodGet)
	protected.HandleFunc("/message/search/{userId}", s.handleSearch).Methods(http.MethodGet)
	protected.HandleFunc("/message/read/{userId}", s.handleMarkRead).Methods(http.MethodPut)
	protected.HandleFunc("/message/unread-count", s.handleUnreadCount).Methods(http.MethodGet)
	protected.HandleFunc("/message/{id}", s.handleSoftDelete).Methods(http.MethodDelete)
	protected.HandleFunc("/directory/sync", s.handleDirectorySync).Methods(http.MethodPost)
	return router
}

type sendRequest struct {
	Receiver    string `json:"receiver" validate:"required"`
	Content     string `json:"content"`
	MessageType string `json:"messageType" validate:"omitempty,oneof=text image file location"`
	FileURL     string `json:"fileUrl"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize" validate:"gte=0"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var request sendRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messageType := messaging.MessageType(request.MessageType)
	if request.MessageType == "" {
		messageType = messaging.TypeText
	}

	command := messaging.SendCommand{
		SenderID:   principal(r),
		ReceiverID: request.Receiver,
		Content:    request.Content,
		Type:       messageType,
	}
	if request.FileURL != "" || request.FileName != "" || request.FileSize > 0 {
		command.File = &messaging.FileMeta{
			URL:  request.FileURL,
			Name: request.FileName,
			Size: request.FileSize,
		}
	}

	view, err := s.messages.Send(r.Context(), command)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "Message sent successfully",
		Data:    map[string]any{"message": toMessageResponse(view)},
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := s.paging(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	views, total, err := s.messages.GetConversation(r.Context(), messaging.GetConversationCommand{
		ViewerID: principal(r),
		PeerID:   mux.Vars(r)["userId"],
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	writeData(w, http.StatusOK, map[string]any{
		"messages":    toMessageResponses(views),
		"total":       total,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.conversations.ListConversations(r.Context(), principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	responses := make([]conversationResponse, 0, len(summaries))
	for _, summary := range summaries {
		responses = append(responses, toConversationResponse(summary))
	}
	writeData(w, http.StatusOK, map[string]any{"conversations": responses})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, r, apperrors.ErrInvalidPaging)
			return
		}
		page = parsed
	}

	views, total, err := s.messages.SearchConversation(r.Context(), messaging.SearchCommand{
		ViewerID: principal(r),
		PeerID:   mux.Vars(r)["userId"],
		Query:    r.URL.Query().Get("q"),
		Page:     page,
		PageSize: s.defaultPageSize,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"messages": toMessageResponses(views),
		"total":    total,
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	count, err := s.messages.MarkRead(r.Context(), messaging.MarkReadCommand{
		ViewerID: principal(r),
		PeerID:   mux.Vars(r)["userId"],
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Messages marked as read",
		Data:    map[string]any{"count": count},
	})
}

func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, apperrors.ErrMessageNotFound)
		return
	}

	if err := s.messages.SoftDelete(r.Context(), principal(r), messageID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Message deleted successfully"})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.messages.UnreadCount(r.Context(), principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"unreadCount": count})
}

func (s *Server) handleDirectorySync(w http.ResponseWriter, r *http.Request) {
	if !hasRole(r, adminRole) {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	var profile directory.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil || profile.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid profile")
		return
	}
	if err := s.users.Upsert(r.Context(), profile); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Profile synced"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.monitor.Snapshot())
}

// paging parses 1-based page/limit query parameters with the configured
// default and ceiling.
func (s *Server) paging(r *http.Request) (int, int, error) {
	page, pageSize := 1, s.defaultPageSize
	query := r.URL.Query()
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperrors.ErrInvalidPaging
		}
		page = parsed
	}
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperrors.ErrInvalidPaging
		}
		pageSize = parsed
	}
	if page < 1 || pageSize < 1 || pageSize > s.maxPageSize {
		return 0, 0, apperrors.ErrInvalidPaging
	}
	return page, pageSize, nil
}

// fail maps a domain error onto the wire. Infrastructure failures are logged
// with full detail and surfaced as a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
