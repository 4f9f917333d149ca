package chatserver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/pnibot/pnibot/pkg/api"
	"github.com/pnibot/pnibot/pkg/chat"
)

// MaxUploadSizeBytes caps the multipart form we are willing to parse (16MB).
const MaxUploadSizeBytes = 16 << 20

// jsonChatStream handles POST requests for one chat turn. The body is
// multipart form data with a "message" field, an optional "chat_id", and an
// optional "file" attachment. The reply is streamed as server-sent events;
// the conversation id is echoed in the X-Chat-ID header, minted fresh when
// the client did not send one.
func (s *Server) jsonChatStream(w http.ResponseWriter, req *http.Request) {
	user := getUserForRequest(req)
	if user == "" {
		api.FailureResponse(w, http.StatusUnauthorized, "User authentication required")
		return
	}

	if err := req.ParseMultipartForm(MaxUploadSizeBytes); err != nil {
		api.FailureResponse(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	turn := chat.TurnRequest{
		User:           user,
		ConversationID: req.FormValue("chat_id"),
		Message:        req.FormValue("message"),
	}
	if turn.ConversationID == "" {
		turn.ConversationID = uuid.New().String()
	}

	if file, header, err := req.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, MaxUploadSizeBytes))
		if err != nil {
			api.FailureResponse(w, http.StatusBadRequest, "Could not read attachment: "+err.Error())
			return
		}
		turn.FileName = header.Filename
		turn.FileData = data
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.FailureResponse(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Chat-ID", turn.ConversationID)

	sink := func(token string) error {
		if _, err := fmt.Fprint(w, token); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := s.pipeline.Run(req.Context(), turn, sink)

	chatTurnsMetric.WithLabelValues(string(result.Outcome)).Inc()
	if result.Evidence != "" {
		chatEvidenceMetric.WithLabelValues(string(result.Evidence)).Inc()
	}

	if err != nil {
		// Headers are not written until the first token, so request-level
		// failures can still get a proper status.
		switch {
		case errors.Is(err, chat.ErrEmptyTurn):
			api.FailureResponse(w, http.StatusBadRequest, "Message or a readable file is required")
		case errors.Is(err, chat.ErrUnreadableFile):
			api.FailureResponse(w, http.StatusBadRequest, "Could not extract text from the attached file")
		default:
			log.WithError(err).Error("chat turn failed")
			api.FailureResponse(w, http.StatusInternalServerError, "Chat turn failed")
		}
		return
	}
}
