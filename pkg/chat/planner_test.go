package chat

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Chat(_ context.Context, _, data string) (string, error) {
	f.prompt = data
	return f.response, f.err
}

func TestPlannerPlan(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		expected PlanDecision
	}{
		{
			name:     "in-scope with search",
			response: `{"is_business": true, "personality": "analyst", "needs_search": true, "search_query": "ставка НДС 2026", "num_results": 3}`,
			expected: PlanDecision{InScope: true, Persona: PersonaAnalyst, NeedsSearch: true, SearchQuery: "ставка НДС 2026", ResultCount: 3},
		},
		{
			name:     "in-scope without search",
			response: `{"is_business": true, "personality": "marketing", "needs_search": false, "search_query": null, "num_results": 0}`,
			expected: PlanDecision{InScope: true, Persona: PersonaMarketing},
		},
		{
			name:     "fenced response",
			response: "```json\n{\"is_business\": true, \"personality\": \"legal\", \"needs_search\": false}\n```",
			expected: PlanDecision{InScope: true, Persona: PersonaLegal},
		},
		{
			name:     "out of scope",
			response: `{"is_business": false, "personality": "marketing", "needs_search": true, "search_query": "погода", "num_results": 1}`,
			expected: failSafeDecision(),
		},
		{
			name:     "unknown persona coerced to default",
			response: `{"is_business": true, "personality": "astrologer", "needs_search": false}`,
			expected: PlanDecision{InScope: true, Persona: PersonaDefault},
		},
		{
			name:     "search requested without query is repaired",
			response: `{"is_business": true, "personality": "default", "needs_search": true, "search_query": "", "num_results": 3}`,
			expected: PlanDecision{InScope: true, Persona: PersonaDefault},
		},
		{
			name:     "classifier call failure degrades to fail-safe",
			response: "",
			err:      errors.New("upstream timeout"),
			expected: failSafeDecision(),
		},
		{
			name:     "unparseable response degrades to fail-safe",
			response: "Я не могу вернуть JSON, но вот мои мысли...",
			expected: failSafeDecision(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			planner := NewPlanner(&fakeCompleter{response: tc.response, err: tc.err})
			decision := planner.Plan(context.Background(), "вопрос", nil)
			assert.Equal(t, tc.expected, decision)
		})
	}
}

func TestPlannerHistoryWindow(t *testing.T) {
	llm := &fakeCompleter{response: `{"is_business": true}`}
	planner := NewPlanner(llm)

	history := []Message{
		{Role: RoleUser, Content: "первое сообщение"},
		{Role: RoleAssistant, Content: "первый ответ"},
		{Role: RoleUser, Content: "второе сообщение"},
		{Role: RoleAssistant, Content: "второй ответ"},
		{Role: RoleUser, Content: "третье сообщение"},
		{Role: RoleAssistant, Content: "третий ответ"},
	}

	planner.Plan(context.Background(), "вопрос", history)

	// Only the last five messages make it into the prompt.
	assert.NotContains(t, llm.prompt, "первое сообщение")
	assert.Contains(t, llm.prompt, "третий ответ")
}

func TestPlannerHistoryTruncation(t *testing.T) {
	llm := &fakeCompleter{response: `{"is_business": true}`}
	planner := NewPlanner(llm)

	long := make([]rune, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'а')
	}

	planner.Plan(context.Background(), "вопрос", []Message{
		{Role: RoleContext, Content: string(long)},
	})

	assert.NotContains(t, llm.prompt, string(long))
	assert.Contains(t, llm.prompt, string(long[:100])+"...")
}
