package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// PlanDecision is the planner's verdict for a single turn. It is transient:
// consumed by the pipeline and never persisted.
type PlanDecision struct {
	InScope     bool
	Persona     Persona
	NeedsSearch bool
	SearchQuery string
	ResultCount int
}

// failSafeDecision is returned whenever the classifier call or its payload
// cannot be trusted: a broken classifier must never let an out-of-scope or
// search-triggering answer through.
func failSafeDecision() PlanDecision {
	return PlanDecision{InScope: false, Persona: PersonaDefault}
}

// Completer issues one deterministic completion. *ai.LLMClient satisfies it;
// tests substitute fakes.
type Completer interface {
	Chat(ctx context.Context, instructions, data string) (string, error)
}

const plannerSystemPrompt = "Ты — ИИ-анализатор. Твоя задача — проанализировать запрос и вернуть ТОЛЬКО JSON-объект с планом действий."

const analysisPlanPromptTemplate = `
Ты — ИИ-ассистент, принимающий решения.
Твоя задача — проанализировать последний запрос пользователя и историю чата, чтобы составить план ответа.
Верни ТОЛЬКО JSON-объект и ничего больше.

1.  **Фильтрация (is_business):**
    -   Определи, относится ли запрос к ведению бизнеса (маркетинг, юриспруденция, финансы, управление, бухгалтерия, запуск компании и т.д.).
    -   Ключ: "is_business" (boolean: true или false).

2.  **Выбор личности (personality):**
    -   Если "is_business" - true, определи категорию: ["marketing", "legal", "analyst", "default"].
    -   "marketing": SMM, SEO, реклама, ЦА, контент-планы.
    -   "legal": Регистрация ООО/ИП, налоги, контракты, лицензии.
    -   "analyst": Бизнес-планы, SWOT-анализ, фин. модели, анализ рынка, KPI.
    -   "default": Общие вопросы о бизнесе.
    -   Если "is_business" - false, установи "personality" в "default".
    -   Ключ: "personality" (string).

3.  **Решение о поиске (needs_search):**
    -   Нужен ли поиск в интернете для ответа?
    -   Искать нужно (true): Запросы о текущих событиях (новости, погода, курсы валют СЕГОДНЯ), конкретных фактах, цифрах, статистике, законах, налогах, малоизвестных компаниях/продуктах.
    -   Искать НЕ нужно (false): Общие вопросы, на которые у LLM есть ответ (например, "что такое маркетинг"), вопросы о личном мнении, продолжение разговора, вопросы о предыдущих сообщениях в чате, **если в запросе пользователя уже есть ссылки (URL) или прикреплен файл (сообщение содержит '(Прикреплен файл: ...)')**.
    -   Ключ: "needs_search" (boolean).

4.  **Поисковый запрос (search_query):**
    -   Если "needs_search" - true, сгенерируй краткий и точный поисковый запрос. Текущая дата: %s
    -   Если "needs_search" - false, верни null.
    -   Ключ: "search_query" (string или null).

5.  **Количество результатов (num_results):**
    -   Если "needs_search" - true, реши, сколько страниц нужно для ответа (от 1 до 5).
    -   1: для простых фактов (погода, курс валюты).
    -   3: для большинства запросов (стандартное значение).
    -   5: для сложных тем, требующих всестороннего анализа.
    -   Если "needs_search" - false, верни 0.
    -   Ключ: "num_results" (integer: 0, 1, 3, 5).

История чата (последние 5 сообщений):
%s

Запрос пользователя: "%s"

Твой JSON-ответ:
`

const (
	plannerHistoryWindow    = 5
	plannerHistoryCharLimit = 100
)

// Planner classifies a turn in a single structured-decision call: domain
// relevance, persona, and whether (and how) to search the web.
type Planner struct {
	llm Completer
	now func() time.Time
}

func NewPlanner(llm Completer) *Planner {
	return &Planner{llm: llm, now: time.Now}
}

// Plan analyzes the visible user message against a bounded window of prior
// conversation. It never returns an error: any failure degrades to the
// fail-safe out-of-scope decision.
func (p *Planner) Plan(ctx context.Context, userMessage string, history []Message) PlanDecision {
	prompt := fmt.Sprintf(analysisPlanPromptTemplate,
		p.now().Format("02.01.2006"),
		formatHistory(history),
		userMessage,
	)

	response, err := p.llm.Chat(ctx, plannerSystemPrompt, prompt)
	if err != nil {
		log.WithError(err).Error("planner classification call failed")
		return failSafeDecision()
	}

	payload, err := ExtractJSONPayload(response)
	if err != nil {
		log.WithError(err).WithField("response", response).Error("planner returned unparseable decision")
		return failSafeDecision()
	}

	decision := PlanDecision{
		InScope:     gjson.Get(payload, "is_business").Bool(),
		Persona:     ParsePersona(gjson.Get(payload, "personality").String()),
		NeedsSearch: gjson.Get(payload, "needs_search").Bool(),
		SearchQuery: gjson.Get(payload, "search_query").String(),
		ResultCount: int(gjson.Get(payload, "num_results").Int()),
	}

	return repairDecision(decision)
}

// repairDecision enforces the decision invariants before anything downstream
// can see a contradictory plan.
func repairDecision(d PlanDecision) PlanDecision {
	if !d.InScope {
		return failSafeDecision()
	}

	if d.NeedsSearch && d.SearchQuery == "" {
		d.NeedsSearch = false
	}
	if !d.NeedsSearch {
		d.SearchQuery = ""
		d.ResultCount = 0
	}

	return d
}

// formatHistory renders the last plannerHistoryWindow messages, truncated so
// a pasted document in history cannot drown the classifier.
func formatHistory(history []Message) string {
	if len(history) > plannerHistoryWindow {
		history = history[len(history)-plannerHistoryWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		content := m.Content
		if runes := []rune(content); len(runes) > plannerHistoryCharLimit {
			content = string(runes[:plannerHistoryCharLimit]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, content))
	}

	return strings.Join(lines, "\n")
}
