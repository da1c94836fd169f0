package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/firebase/genkit/go/ai"
)

const duckDuckGoBaseURL = "https://api.duckduckgo.com/"

const maxSearchBody = 1 << 20

// searchResponse mirrors the DuckDuckGo instant-answer payload.
type searchResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	Definition    string `json:"Definition"`
	DefinitionURL string `json:"DefinitionURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// rephrasingHints accompany an empty search result so the model can
// coach the user instead of dead-ending.
var rephrasingHints = []string{
	"Try rephrasing your search query",
	"Be more specific about what you're looking for",
	"Ask about topics like weather, coding, writing, or general knowledge",
}

// WebSearch queries the DuckDuckGo instant-answer API. A query with no
// instant answer is a successful result with an empty list, not an error;
// the model decides how to proceed.
func (k *Kit) WebSearch(ctx *ai.ToolContext, input SearchInput) (Result, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return errorResult(ErrCodeInvalidInput, "search query is empty"), nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet, k.searchBaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("building search request: %v", err)), nil
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		k.logger.Error("web search failed", "query", query, "error", err)
		return errorResult(ErrCodeNetwork, fmt.Sprintf("searching: %v", err)), nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("search service returned status %d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("reading search response: %v", err)), nil
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("decoding search response: %v", err)), nil
	}

	answer := sr.Answer
	if answer == "" {
		answer = sr.AbstractText
	}
	if answer == "" {
		answer = sr.Definition
	}

	source := sr.AbstractURL
	if source == "" {
		source = sr.DefinitionURL
	}

	results := make([]map[string]string, 0, len(sr.RelatedTopics))
	for _, topic := range sr.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		results = append(results, map[string]string{
			"text": topic.Text,
			"url":  topic.FirstURL,
		})
		if len(results) == 5 {
			break
		}
	}

	k.logger.Info("web search completed", "query", query, "results", len(results))

	if answer == "" && len(results) == 0 {
		return Result{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("No results found for %q", query),
			Data: map[string]any{
				"query":       query,
				"results":     results,
				"suggestions": rephrasingHints,
			},
		}, nil
	}

	message := answer
	if message == "" {
		message = fmt.Sprintf("Found %d related results", len(results))
	}

	return Result{
		Status:  StatusSuccess,
		Message: message,
		Data: map[string]any{
			"query":   query,
			"heading": sr.Heading,
			"answer":  answer,
			"source":  source,
			"results": results,
		},
	}, nil
}
