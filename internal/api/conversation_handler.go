package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/apexmind/backend/internal/conversation"
	"github.com/apexmind/backend/internal/models"
	"github.com/apexmind/backend/internal/usage"
)

const conversationNotFoundMessage = "Conversation not found"

type ConversationHandler struct {
	repo  conversation.Repository
	usage *usage.Service
}

func NewConversationHandler(repo conversation.Repository, usageService *usage.Service) *ConversationHandler {
	return &ConversationHandler{
		repo:  repo,
		usage: usageService,
	}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	convs, err := h.repo.ListByUser(r.Context(), u.ID)
	if err != nil {
		log.Printf("Failed to list conversations for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, convs)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	conv, err := h.repo.GetByID(r.Context(), u.ID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, conversationNotFoundMessage)
			return
		}
		log.Printf("Failed to get conversation: %v", err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, conv)
}

type conversationRequest struct {
	Title    string           `json:"title"`
	Messages []models.Message `json:"messages"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	conv := &models.Conversation{
		UserID:   u.ID,
		Title:    req.Title,
		Messages: req.Messages,
	}
	if err := h.repo.Create(r.Context(), conv); err != nil {
		log.Printf("Failed to create conversation for %s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	h.recordUsage(r, conv.Messages)
	writeJSON(w, conv)
}

func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, invalidRequestMessage)
		return
	}

	prev, err := h.repo.GetByID(r.Context(), u.ID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, conversationNotFoundMessage)
			return
		}
		log.Printf("Failed to load conversation: %v", err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	conv := &models.Conversation{
		ID:       prev.ID,
		UserID:   u.ID,
		Title:    req.Title,
		Messages: req.Messages,
	}
	if conv.Title == "" {
		conv.Title = prev.Title
	}

	if err := h.repo.Update(r.Context(), conv); err != nil {
		log.Printf("Failed to update conversation %s: %v", conv.ID, err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	h.recordUsage(r, newMessages(prev.Messages, conv.Messages))
	writeJSON(w, conv)
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	if err := h.repo.Delete(r.Context(), u.ID, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, conversationNotFoundMessage)
			return
		}
		log.Printf("Failed to delete conversation: %v", err)
		writeError(w, http.StatusInternalServerError, internalServerError)
		return
	}

	writeJSON(w, map[string]string{"message": "Conversation deleted"})
}

// recordUsage meters assistant messages that carry a model tag. Metering
// failures never fail the request that stored the conversation.
func (h *ConversationHandler) recordUsage(r *http.Request, messages []models.Message) {
	u, ok := GetUserFromContext(r.Context())
	if !ok || h.usage == nil {
		return
	}

	for _, m := range messages {
		if m.Model == nil || (m.PromptTokens == 0 && m.CompletionTokens == 0) {
			continue
		}
		event := &models.UsageEvent{
			Model:            *m.Model,
			PromptTokens:     m.PromptTokens,
			CompletionTokens: m.CompletionTokens,
		}
		if err := h.usage.Record(r.Context(), u, event); err != nil {
			log.Printf("Failed to record usage for %s: %v", u.ID, err)
		}
	}
}

// newMessages returns the subset of next not already present in prev, by id.
func newMessages(prev, next []models.Message) []models.Message {
	seen := make(map[string]bool, len(prev))
	for _, m := range prev {
		seen[m.ID] = true
	}
	var fresh []models.Message
	for _, m := range next {
		if m.ID == "" || !seen[m.ID] {
			fresh = append(fresh, m)
		}
	}
	return fresh
}
