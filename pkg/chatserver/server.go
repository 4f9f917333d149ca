package chatserver

import (
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/pnibot/pnibot/pkg/chat"
)

// Server exposes the chat pipeline and conversation store over HTTP.
type Server struct {
	listenAddr string
	pipeline   *chat.Pipeline
	store      chat.ConversationStore
	static     fs.FS
	httpServer *http.Server
}

func NewServer(listenAddr string, pipeline *chat.Pipeline, store chat.ConversationStore, static fs.FS) *Server {
	return &Server{
		listenAddr: listenAddr,
		pipeline:   pipeline,
		store:      store,
		static:     static,
	}
}

func (s *Server) Serve() {
	router := mux.NewRouter()

	router.HandleFunc("/api/chat/stream", s.jsonChatStream).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/conversations", s.jsonListConversations).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/conversations/{id}", s.jsonGetConversation).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/conversations/{id}", s.jsonDeleteConversation).Methods(http.MethodDelete)

	if s.static != nil {
		router.PathPrefix("/").Handler(http.FileServer(http.FS(s.static)))
	}

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: router,
	}

	log.Infof("Serving chat API on %s", s.listenAddr)

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server exited")
	}
}

func (s *Server) GetHTTPServer() *http.Server {
	return s.httpServer
}

// getUserForRequest returns the authenticated user's identity, set by the
// auth proxy in front of us. Empty when unauthenticated.
func getUserForRequest(req *http.Request) string {
	return req.Header.Get("X-Forwarded-User")
}
