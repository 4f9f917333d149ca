package chatserver

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/pnibot/pnibot/pkg/api"
	"github.com/pnibot/pnibot/pkg/chat"
)

// ConversationResponse is the payload for a single conversation, with hidden
// context messages filtered out.
type ConversationResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Messages []chat.Message `json:"messages"`
}

// jsonListConversations returns the caller's conversations, most recently
// updated first.
func (s *Server) jsonListConversations(w http.ResponseWriter, req *http.Request) {
	user := getUserForRequest(req)
	if user == "" {
		api.FailureResponse(w, http.StatusUnauthorized, "User authentication required")
		return
	}

	summaries, err := s.store.List(req.Context(), user)
	if err != nil {
		log.WithError(err).Error("error listing conversations")
		api.FailureResponse(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, summaries)
}

// jsonGetConversation returns one conversation's visible messages.
func (s *Server) jsonGetConversation(w http.ResponseWriter, req *http.Request) {
	user := getUserForRequest(req)
	if user == "" {
		api.FailureResponse(w, http.StatusUnauthorized, "User authentication required")
		return
	}

	id := mux.Vars(req)["id"]
	conversation, err := s.store.Get(req.Context(), id, user)
	if errors.Is(err, chat.ErrNotFound) {
		api.FailureResponse(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.WithError(err).WithField("conversation", id).Error("error fetching conversation")
		api.FailureResponse(w, http.StatusInternalServerError, "Failed to fetch conversation")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, ConversationResponse{
		ID:       conversation.ID,
		Name:     conversation.Name,
		Messages: conversation.VisibleMessages(),
	})
}

// jsonDeleteConversation removes one of the caller's conversations.
func (s *Server) jsonDeleteConversation(w http.ResponseWriter, req *http.Request) {
	user := getUserForRequest(req)
	if user == "" {
		api.FailureResponse(w, http.StatusUnauthorized, "User authentication required")
		return
	}

	id := mux.Vars(req)["id"]
	err := s.store.Delete(req.Context(), id, user)
	if errors.Is(err, chat.ErrNotFound) {
		api.FailureResponse(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.WithError(err).WithField("conversation", id).Error("error deleting conversation")
		api.FailureResponse(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	api.RespondWithJSON(http.StatusOK, w, map[string]string{"status": "deleted"})
}
