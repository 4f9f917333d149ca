package chatserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnibot/pnibot/pkg/chat"
)

type fakeStore struct {
	conversations map[string]*chat.Conversation
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[string]*chat.Conversation{}}
}

func (s *fakeStore) Get(_ context.Context, id, user string) (*chat.Conversation, error) {
	conversation, ok := s.conversations[id]
	if !ok || conversation.User != user {
		return nil, chat.ErrNotFound
	}
	return conversation, nil
}

func (s *fakeStore) Upsert(_ context.Context, conversation *chat.Conversation, _ bool) error {
	s.conversations[conversation.ID] = conversation
	return nil
}

func (s *fakeStore) List(_ context.Context, user string) ([]chat.ConversationSummary, error) {
	summaries := []chat.ConversationSummary{}
	for _, c := range s.conversations {
		if c.User == user {
			summaries = append(summaries, chat.ConversationSummary{ID: c.ID, Name: c.Name})
		}
	}
	return summaries, nil
}

func (s *fakeStore) Delete(_ context.Context, id, user string) error {
	conversation, ok := s.conversations[id]
	if !ok || conversation.User != user {
		return chat.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

func newTestRouter(store chat.ConversationStore) *mux.Router {
	s := NewServer(":0", nil, store, nil)
	router := mux.NewRouter()
	router.HandleFunc("/api/chat/conversations", s.jsonListConversations).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/conversations/{id}", s.jsonGetConversation).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/conversations/{id}", s.jsonDeleteConversation).Methods(http.MethodDelete)
	return router
}

func TestListConversationsRequiresAuth(t *testing.T) {
	router := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestListConversations(t *testing.T) {
	store := newFakeStore()
	store.conversations["c1"] = &chat.Conversation{ID: "c1", User: "alice", Name: "мой чат"}
	store.conversations["c2"] = &chat.Conversation{ID: "c2", User: "bob", Name: "чужой чат"}

	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var summaries []chat.ConversationSummary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "c1", summaries[0].ID)
}

func TestGetConversationFiltersContextMessages(t *testing.T) {
	store := newFakeStore()
	store.conversations["c1"] = &chat.Conversation{
		ID:   "c1",
		User: "alice",
		Name: "отчет",
		Messages: []chat.Message{
			{Role: chat.RoleContext, Content: "скрытый контекст из файла"},
			{Role: chat.RoleUser, Content: "проанализируй отчет"},
			{Role: chat.RoleAssistant, Content: "анализ готов"},
		},
	}

	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations/c1", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response ConversationResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Messages, 2)
	assert.Equal(t, chat.RoleUser, response.Messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, response.Messages[1].Role)
	assert.NotContains(t, recorder.Body.String(), "скрытый контекст")
}

func TestGetConversationOwnerScoped(t *testing.T) {
	store := newFakeStore()
	store.conversations["c1"] = &chat.Conversation{ID: "c1", User: "bob"}

	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations/c1", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDeleteConversation(t *testing.T) {
	store := newFakeStore()
	store.conversations["c1"] = &chat.Conversation{ID: "c1", User: "alice"}

	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/conversations/c1", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotContains(t, store.conversations, "c1")
}

func TestDeleteConversationNotFound(t *testing.T) {
	router := newTestRouter(newFakeStore())

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/conversations/missing", nil)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
