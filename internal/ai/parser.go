package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes reasoning-model tags from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

type headlineResponse struct {
	Headline string `json:"headline"`
}

// ParseHeadline extracts the headline from a model response.
// Handles: a JSON object, markdown code fences, JSON surrounded by prose.
func ParseHeadline(text string) (string, error) {
	cleaned := StripThinkTags(text)

	// Remove markdown code fences
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var resp headlineResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return "", fmt.Errorf("no JSON object in response: %.200s", cleaned)
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &resp); err != nil {
			return "", fmt.Errorf("failed to parse response as JSON: %.200s", cleaned)
		}
	}

	headline := strings.Join(strings.Fields(resp.Headline), " ")
	if headline == "" {
		return "", fmt.Errorf("empty headline")
	}
	if r := []rune(headline); len(r) > maxHeadlineRunes {
		headline = string(r[:maxHeadlineRunes])
	}
	return headline, nil
}
