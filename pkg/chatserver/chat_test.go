package chatserver

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnibot/pnibot/pkg/ai"
	"github.com/pnibot/pnibot/pkg/chat"
	"github.com/pnibot/pnibot/pkg/search"
)

type cannedCompleter struct {
	response string
}

func (c *cannedCompleter) Chat(context.Context, string, string) (string, error) {
	return c.response, nil
}

type cannedGenerator struct {
	deltas []string
}

func (c *cannedGenerator) ChatStream(_ context.Context, _ []ai.Message, onDelta func(string) error) error {
	for _, delta := range c.deltas {
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	return nil
}

type noSearch struct{}

func (noSearch) Search(context.Context, string, int) ([]search.Result, error) {
	return nil, nil
}

func newStreamServer(store chat.ConversationStore, plannerResponse string, deltas []string) *Server {
	pipeline := chat.NewPipeline(
		store,
		chat.NewPlanner(&cannedCompleter{response: plannerResponse}),
		chat.NewLinkFetcher(nil),
		chat.NewWebGatherer(noSearch{}, nil),
		chat.NewStreamer(&cannedGenerator{deltas: deltas}, store),
	)
	return NewServer(":0", pipeline, store, nil)
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, fileData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(fileData))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func TestChatStreamRequiresAuth(t *testing.T) {
	server := newStreamServer(newFakeStore(), `{"is_business": true}`, []string{"ответ"})

	body, contentType := multipartBody(t, map[string]string{"message": "вопрос"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestChatStreamMintsChatID(t *testing.T) {
	store := newFakeStore()
	server := newStreamServer(store, `{"is_business": true}`, []string{"Здравствуйте, ", "чем помочь?"})

	body, contentType := multipartBody(t, map[string]string{"message": "Как открыть ООО?"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Здравствуйте, чем помочь?", recorder.Body.String())

	chatID := recorder.Header().Get("X-Chat-ID")
	require.NotEmpty(t, chatID)
	assert.Contains(t, store.conversations, chatID)
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
}

func TestChatStreamReusesChatID(t *testing.T) {
	store := newFakeStore()
	store.conversations["existing"] = &chat.Conversation{
		ID:   "existing",
		User: "alice",
		Name: "мой чат",
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "старый вопрос"},
			{Role: chat.RoleAssistant, Content: "старый ответ"},
		},
	}
	server := newStreamServer(store, `{"is_business": true}`, []string{"продолжаю"})

	body, contentType := multipartBody(t, map[string]string{
		"message": "продолжим",
		"chat_id": "existing",
	}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "existing", recorder.Header().Get("X-Chat-ID"))
	assert.Len(t, store.conversations["existing"].Messages, 4)
}

func TestChatStreamEmptyTurn(t *testing.T) {
	server := newStreamServer(newFakeStore(), `{"is_business": true}`, nil)

	body, contentType := multipartBody(t, map[string]string{"message": ""}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestChatStreamUnreadableFile(t *testing.T) {
	server := newStreamServer(newFakeStore(), `{"is_business": true}`, nil)

	body, contentType := multipartBody(t, map[string]string{"message": ""}, "blob.bin", []byte{0xff, 0xfe, 0x98})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestChatStreamRefusal(t *testing.T) {
	store := newFakeStore()
	server := newStreamServer(store, `{"is_business": false}`, []string{"не должно попасть"})

	body, contentType := multipartBody(t, map[string]string{"message": "анекдот"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, chat.RefusalMessage, recorder.Body.String())
	assert.Empty(t, store.conversations)
}

func TestChatStreamWithAttachment(t *testing.T) {
	store := newFakeStore()
	server := newStreamServer(store, `{"is_business": true}`, []string{"разбор"})

	body, contentType := multipartBody(t, map[string]string{
		"message": "проанализируй",
		"chat_id": "c1",
	}, "report.txt", []byte("выручка 1М"))
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-User", "alice")
	recorder := httptest.NewRecorder()
	server.jsonChatStream(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	saved := store.conversations["c1"]
	require.NotNil(t, saved)
	require.Len(t, saved.Messages, 3)
	assert.Equal(t, chat.RoleContext, saved.Messages[0].Role)
	assert.Contains(t, saved.Messages[1].Content, "(Прикреплен файл: report.txt)")
}
