package insights

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackSummaryLength is the number of characters of raw text kept as the
// summary when nothing in the response could be parsed.
const FallbackSummaryLength = 500

// DefaultSentiment is used when the response carries no sentiment.
const DefaultSentiment = "neutral"

// Stage identifies which recovery step produced an Insights value.
type Stage int

const (
	StageStrict Stage = iota + 1
	StageRepaired
	StageExtracted
	StageFallback
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageRepaired:
		return "repaired"
	case StageExtracted:
		return "extracted"
	case StageFallback:
		return "fallback"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Insights is the normalised shape of a meeting summary response.
type Insights struct {
	Summary     string   `json:"summary"`
	KeyTopics   []string `json:"key_topics"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
	Sentiment   string   `json:"sentiment"`

	// Stage records how the value was recovered. Not serialised.
	Stage Stage `json:"-"`
}

// Parse turns a raw model response into Insights. It never fails: each stage
// is tried in order and the last one always produces a value.
func Parse(raw string) Insights {
	text := clean(raw)

	if obj, ok := decodeObject(text); ok {
		return build(unwrapNested(obj), StageStrict)
	}

	if obj, ok := decodeObject(repairKeys(balanceBraces(text))); ok {
		return build(unwrapNested(obj), StageRepaired)
	}

	if idx := strings.IndexByte(text, '{'); idx >= 0 {
		candidate := balanceBraces(text[idx:])
		if obj, ok := decodeObject(candidate); ok {
			return build(obj, StageExtracted)
		}
		if obj, ok := decodeObject(repairKeys(candidate)); ok {
			return build(obj, StageExtracted)
		}
	}

	return Fallback(text)
}

// Fallback returns the degraded result for text that could not be parsed.
func Fallback(text string) Insights {
	runes := []rune(text)
	if len(runes) > FallbackSummaryLength {
		runes = runes[:FallbackSummaryLength]
	}
	return Insights{
		Summary:     strings.TrimSpace(string(runes)),
		KeyTopics:   []string{},
		Decisions:   []string{},
		ActionItems: []string{},
		Sentiment:   DefaultSentiment,
		Stage:       StageFallback,
	}
}

// clean strips surrounding whitespace, quotes and markdown code fences.
func clean(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.Trim(text, "`")
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "json"); ok && strings.HasPrefix(strings.TrimSpace(rest), "{") {
		text = strings.TrimSpace(rest)
	}
	if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// unwrapNested replaces obj with the object encoded in its summary field when
// the model double-encoded its answer.
func unwrapNested(obj map[string]any) map[string]any {
	summary, ok := obj["summary"].(string)
	if !ok {
		return obj
	}
	inner, ok := decodeObject(strings.TrimSpace(summary))
	if !ok {
		return obj
	}
	if _, has := inner["summary"]; !has {
		return obj
	}
	return inner
}

func build(obj map[string]any, stage Stage) Insights {
	in := Insights{
		Summary:     stringValue(obj["summary"]),
		KeyTopics:   stringList(obj["key_topics"]),
		Decisions:   stringList(obj["decisions"]),
		ActionItems: stringList(obj["action_items"]),
		Sentiment:   strings.ToLower(strings.TrimSpace(stringValue(obj["sentiment"]))),
		Stage:       stage,
	}
	if in.Sentiment == "" {
		in.Sentiment = DefaultSentiment
	}
	return in
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// stringList accepts a JSON array of anything, or a single scalar, and
// renders each element as a string. Objects are kept as compact JSON.
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := stringValue(t); s != "" {
			return []string{s}
		}
		return []string{}
	}
}
