package chat

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrNoJSONPayload is returned when no valid JSON object can be recovered
// from a model response.
var ErrNoJSONPayload = errors.New("no JSON payload in model response")

// ExtractJSONPayload recovers a JSON document from a model response that may
// be wrapped in a single markdown code fence (``` or ```json). Exactly one
// leading and one trailing fence are stripped; the result must be valid JSON.
func ExtractJSONPayload(response string) (string, error) {
	payload := strings.TrimSpace(response)

	if strings.HasPrefix(payload, "```") {
		_, rest, found := strings.Cut(payload, "\n")
		if !found {
			return "", ErrNoJSONPayload
		}
		if idx := strings.LastIndex(rest, "\n```"); idx >= 0 {
			rest = rest[:idx]
		} else {
			rest = strings.TrimSuffix(rest, "```")
		}
		payload = strings.TrimSpace(rest)
	}

	if !gjson.Valid(payload) {
		return "", ErrNoJSONPayload
	}

	return payload, nil
}
