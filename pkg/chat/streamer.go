package chat

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/pnibot/pnibot/pkg/ai"
)

// Generator produces a streamed completion, invoking onDelta for each token.
type Generator interface {
	ChatStream(ctx context.Context, messages []ai.Message, onDelta func(delta string) error) error
}

// errSinkClosed marks a delta that could not be delivered to the client. The
// accumulated reply is still persisted; only further streaming stops.
var errSinkClosed = errors.New("client sink closed")

// Streamer drives one assistant generation: it streams tokens to the sink,
// accumulates them, and persists the assistant message exactly once however
// the stream ends.
type Streamer struct {
	llm   Generator
	store ConversationStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStreamer(llm Generator, store ConversationStore) *Streamer {
	return &Streamer{
		llm:   llm,
		store: store,
		locks: map[string]*sync.Mutex{},
	}
}

// conversationLock returns the mutex serializing writes for one conversation.
func (s *Streamer) conversationLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Stream generates the assistant reply for the conversation's current
// messages, sending each token to sink. Whatever terminates the stream, any
// tokens already produced are appended to the conversation and saved; a
// stream that produced nothing writes nothing. Provider failures surface to
// the client as a final error token, never as persisted content beyond what
// was already generated.
func (s *Streamer) Stream(ctx context.Context, conversation *Conversation, isNew bool, messages []ai.Message, sink func(token string) error) error {
	var reply strings.Builder

	genErr := s.llm.ChatStream(ctx, messages, func(delta string) error {
		reply.WriteString(delta)
		if err := sink(delta); err != nil {
			return errors.Wrap(errSinkClosed, err.Error())
		}
		return nil
	})

	if genErr != nil && !errors.Is(genErr, errSinkClosed) && ctx.Err() == nil {
		log.WithError(genErr).WithField("conversation", conversation.ID).Error("generation failed")
		if err := sink("Ошибка API: " + genErr.Error()); err != nil {
			log.WithError(err).Debug("could not deliver error token")
		}
	}

	if reply.Len() == 0 {
		return genErr
	}

	conversation.Messages = append(conversation.Messages, Message{
		Role:    RoleAssistant,
		Content: reply.String(),
	})

	// The request context may already be gone (client disconnect); the write
	// must still happen.
	lock := s.conversationLock(conversation.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Upsert(context.Background(), conversation, isNew); err != nil {
		log.WithError(err).WithField("conversation", conversation.ID).Error("could not persist conversation")
		return err
	}

	return genErr
}
