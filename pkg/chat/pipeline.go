package chat

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/pnibot/pnibot/pkg/ai"
)

// ErrEmptyTurn signals a request carrying neither a message nor usable file
// content.
var ErrEmptyTurn = errors.New("empty message and no readable attachment")

// Outcome summarizes how a turn ended, for accounting.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeRefused  Outcome = "refused"
	OutcomeFailed   Outcome = "failed"
)

const (
	maxConversationNameRunes = 30
	fileContextTemplate      = "Контекст, извлеченный из прикрепленного файла '%s' (используй эту информацию для ответа):\n%s"
	linkContextTemplate      = "Контекст, извлеченный из URL-адресов пользователя (используй эту информацию для ответа):\n%s"
)

// TurnRequest is one user turn: the message plus an optional attachment.
type TurnRequest struct {
	User           string
	ConversationID string
	Message        string
	FileName       string
	FileData       []byte
}

// TurnResult reports what the turn did, independent of the streamed reply.
type TurnResult struct {
	Outcome  Outcome
	Evidence EvidenceKind
}

// Pipeline runs a complete chat turn: evidence collection, planning,
// generation, persistence.
type Pipeline struct {
	store    ConversationStore
	planner  *Planner
	links    *LinkFetcher
	web      *WebGatherer
	streamer *Streamer
}

func NewPipeline(store ConversationStore, planner *Planner, links *LinkFetcher, web *WebGatherer, streamer *Streamer) *Pipeline {
	return &Pipeline{
		store:    store,
		planner:  planner,
		links:    links,
		web:      web,
		streamer: streamer,
	}
}

// Run executes one turn, streaming reply tokens to sink. The evidence order
// is strict: an attached file preempts message links, and both preempt web
// search. File and link context is saved with the conversation as hidden
// context messages; search results are fed to the model for this turn only.
func (p *Pipeline) Run(ctx context.Context, req TurnRequest, sink func(token string) error) (TurnResult, error) {
	logger := log.WithFields(log.Fields{"user": req.User, "conversation": req.ConversationID})

	fileContext := ""
	if len(req.FileData) > 0 {
		extracted, err := ExtractFile(req.FileData, req.FileName)
		if err != nil {
			logger.WithError(err).WithField("file", req.FileName).Warn("could not extract attachment")
			if strings.TrimSpace(req.Message) == "" {
				return TurnResult{Outcome: OutcomeFailed}, ErrUnreadableFile
			}
		} else {
			fileContext = extracted
		}
	}

	if strings.TrimSpace(req.Message) == "" && fileContext == "" {
		return TurnResult{Outcome: OutcomeFailed}, ErrEmptyTurn
	}

	conversation, isNew, err := p.loadConversation(ctx, req)
	if err != nil {
		return TurnResult{Outcome: OutcomeFailed}, err
	}

	evidence := EvidenceNone
	hasFile := fileContext != ""
	if hasFile {
		conversation.Messages = append(conversation.Messages, Message{
			Role:    RoleContext,
			Content: fmt.Sprintf(fileContextTemplate, req.FileName, fileContext),
		})
		evidence = EvidenceFile
	}

	visibleMessage := req.Message
	if req.FileName != "" {
		marker := fmt.Sprintf("(Прикреплен файл: %s)", req.FileName)
		if visibleMessage != "" {
			visibleMessage += "\n\n" + marker
		} else {
			visibleMessage = marker
		}
	}

	// Links are looked for in the raw message. Only a readable attachment
	// preempts them.
	hasLinks := false
	if AllowLinkFetch(hasFile) {
		if linkContext, ok := p.links.FetchAll(ctx, req.Message); ok {
			conversation.Messages = append(conversation.Messages, Message{
				Role:    RoleContext,
				Content: fmt.Sprintf(linkContextTemplate, linkContext),
			})
			hasLinks = true
			evidence = EvidenceLinks
		}
	}

	if isNew {
		conversation.Name = conversationName(visibleMessage)
	}

	plan := p.planner.Plan(ctx, visibleMessage, conversation.Messages)
	logger.WithFields(log.Fields{
		"in_scope":     plan.InScope,
		"persona":      plan.Persona.String(),
		"needs_search": plan.NeedsSearch,
	}).Debug("turn plan")

	if !plan.InScope {
		if err := sink(RefusalMessage); err != nil {
			logger.WithError(err).Debug("could not deliver refusal")
		}
		return TurnResult{Outcome: OutcomeRefused, Evidence: evidence}, nil
	}

	searchContext := ""
	if AllowSearch(hasFile, hasLinks, plan) {
		searchContext = p.web.Gather(ctx, plan.SearchQuery, plan.ResultCount)
		evidence = EvidenceSearch
	} else if plan.NeedsSearch {
		logger.Debug("search skipped, file or link evidence takes precedence")
	}

	conversation.Messages = append(conversation.Messages, Message{
		Role:    RoleUser,
		Content: visibleMessage,
	})

	messages := promptMessages(plan.Persona, searchContext, conversation.Messages)
	if err := p.streamer.Stream(ctx, conversation, isNew, messages, sink); err != nil {
		return TurnResult{Outcome: OutcomeFailed, Evidence: evidence}, nil
	}

	return TurnResult{Outcome: OutcomeAnswered, Evidence: evidence}, nil
}

// loadConversation fetches the turn's conversation, treating an unknown id as
// the start of a new conversation under that id.
func (p *Pipeline) loadConversation(ctx context.Context, req TurnRequest) (*Conversation, bool, error) {
	conversation, err := p.store.Get(ctx, req.ConversationID, req.User)
	if errors.Is(err, ErrNotFound) {
		return &Conversation{ID: req.ConversationID, User: req.User}, true, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "could not load conversation")
	}
	return conversation, false, nil
}

// conversationName derives a new conversation's name from its first message.
func conversationName(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > maxConversationNameRunes {
		runes = runes[:maxConversationNameRunes]
	}
	return string(runes)
}

// promptMessages assembles the generation request: the persona's system
// prompt, this turn's search results if any, then the stored history with
// hidden context messages presented to the model as system messages.
func promptMessages(persona Persona, searchContext string, history []Message) []ai.Message {
	messages := []ai.Message{{Role: ai.RoleSystem, Content: persona.Instructions()}}

	if searchContext != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: searchContext})
	}

	for _, msg := range history {
		role := ai.RoleUser
		switch msg.Role {
		case RoleAssistant:
			role = ai.RoleAssistant
		case RoleContext:
			role = ai.RoleSystem
		}
		messages = append(messages, ai.Message{Role: role, Content: msg.Content})
	}

	return messages
}
