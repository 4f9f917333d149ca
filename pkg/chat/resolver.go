package chat

// EvidenceKind names the single evidence source a turn ended up using.
type EvidenceKind string

const (
	EvidenceNone   EvidenceKind = "none"
	EvidenceFile   EvidenceKind = "file"
	EvidenceLinks  EvidenceKind = "links"
	EvidenceSearch EvidenceKind = "search"
)

// AllowLinkFetch reports whether message links may be resolved. An attached
// file always wins over links.
func AllowLinkFetch(hasFile bool) bool {
	return !hasFile
}

// AllowSearch reports whether a web search may run. File and link evidence
// both preempt search, and the plan must actually ask for one.
func AllowSearch(hasFile, hasLinks bool, plan PlanDecision) bool {
	return !hasFile && !hasLinks &&
		plan.NeedsSearch && plan.SearchQuery != "" && plan.ResultCount > 0
}
