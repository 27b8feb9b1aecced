package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/apexmind/backend/internal/conversation"
	"github.com/apexmind/backend/internal/models"
)

type fakeConversationRepo struct {
	convs map[string]*models.Conversation
}

func newFakeConversationRepo(convs ...*models.Conversation) *fakeConversationRepo {
	r := &fakeConversationRepo{convs: make(map[string]*models.Conversation)}
	for _, c := range convs {
		r.convs[c.ID] = c
	}
	return r
}

func (r *fakeConversationRepo) ListByUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, c := range r.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, userID, conversationID string) (*models.Conversation, error) {
	c, ok := r.convs[conversationID]
	if !ok || c.UserID != userID {
		return nil, conversation.ErrNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) Create(_ context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	r.convs[conv.ID] = conv
	return nil
}

func (r *fakeConversationRepo) Update(_ context.Context, conv *models.Conversation) error {
	existing, ok := r.convs[conv.ID]
	if !ok || existing.UserID != conv.UserID {
		return conversation.ErrNotFound
	}
	r.convs[conv.ID] = conv
	return nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, userID, conversationID string) error {
	c, ok := r.convs[conversationID]
	if !ok || c.UserID != userID {
		return conversation.ErrNotFound
	}
	delete(r.convs, conversationID)
	return nil
}

func convRequest(method, target, body string, u *models.User, id string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if id != "" {
		r = mux.SetURLVars(r, map[string]string{"id": id})
	}
	return withUser(r, u)
}

func TestConversationGetOwnedByAnotherUser(t *testing.T) {
	owner := &models.User{ID: "owner"}
	intruder := &models.User{ID: "intruder"}
	repo := newFakeConversationRepo(&models.Conversation{ID: "c1", UserID: owner.ID, Title: "private"})
	h := NewConversationHandler(repo, nil)

	r := convRequest(http.MethodGet, "/conversations/c1", "", intruder, "c1")
	w := httptest.NewRecorder()
	h.Get(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for another user's conversation", w.Code)
	}
}

func TestConversationGet(t *testing.T) {
	u := &models.User{ID: "u1"}
	repo := newFakeConversationRepo(&models.Conversation{ID: "c1", UserID: "u1", Title: "chat"})
	h := NewConversationHandler(repo, nil)

	r := convRequest(http.MethodGet, "/conversations/c1", "", u, "c1")
	w := httptest.NewRecorder()
	h.Get(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var conv models.Conversation
	if err := json.NewDecoder(w.Body).Decode(&conv); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if conv.Title != "chat" {
		t.Errorf("Title = %q, want chat", conv.Title)
	}
}

func TestConversationCreate(t *testing.T) {
	u := &models.User{ID: "u1"}
	repo := newFakeConversationRepo()
	h := NewConversationHandler(repo, nil)

	body := `{"title":"first chat","messages":[{"role":"user","content":"hi"}]}`
	r := convRequest(http.MethodPost, "/conversations", body, u, "")
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body)
	}
	if len(repo.convs) != 1 {
		t.Fatalf("stored %d conversations, want 1", len(repo.convs))
	}
	for _, c := range repo.convs {
		if c.UserID != "u1" {
			t.Errorf("UserID = %q, want the requesting user", c.UserID)
		}
		if len(c.Messages) != 1 {
			t.Errorf("stored %d messages, want 1", len(c.Messages))
		}
	}
}

func TestConversationCreateRequiresTitle(t *testing.T) {
	h := NewConversationHandler(newFakeConversationRepo(), nil)

	r := convRequest(http.MethodPost, "/conversations", `{"messages":[]}`, &models.User{ID: "u1"}, "")
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConversationUpdateKeepsTitleWhenOmitted(t *testing.T) {
	u := &models.User{ID: "u1"}
	repo := newFakeConversationRepo(&models.Conversation{ID: "c1", UserID: "u1", Title: "original"})
	h := NewConversationHandler(repo, nil)

	r := convRequest(http.MethodPatch, "/conversations/c1", `{"messages":[{"role":"user","content":"more"}]}`, u, "c1")
	w := httptest.NewRecorder()
	h.Update(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body)
	}
	if repo.convs["c1"].Title != "original" {
		t.Errorf("Title = %q, an omitted title must be preserved", repo.convs["c1"].Title)
	}
}

func TestConversationDeleteNotFound(t *testing.T) {
	h := NewConversationHandler(newFakeConversationRepo(), nil)

	r := convRequest(http.MethodDelete, "/conversations/ghost", "", &models.User{ID: "u1"}, "ghost")
	w := httptest.NewRecorder()
	h.Delete(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
