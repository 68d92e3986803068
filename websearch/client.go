// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/deepsearch/core"
)

const (
	// DefaultBaseURL is the DuckDuckGo Instant Answer API endpoint.
	DefaultBaseURL = "https://api.duckduckgo.com"

	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 10 * time.Second

	snippetLimit = 200
)

// Answer is a distilled instant-answer result. Text empty means the engine
// had nothing useful; callers should degrade rather than treat it as an error.
type Answer struct {
	Text       string
	References []core.Reference
}

// Client is a minimal DuckDuckGo Instant Answer API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client with a default timeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// instantAnswer mirrors the fields of the Instant Answer payload we consume.
type instantAnswer struct {
	Abstract      string `json:"Abstract"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	Heading       string `json:"Heading"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search queries the instant-answer endpoint. The answer text is taken from
// the abstract, then the direct answer, then the first related topic. An
// empty Answer.Text with a nil error means no useful results.
func (c *Client) Search(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ErrEmptyQuery
	}

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSearchFailed, resp.StatusCode)
	}

	var raw instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	answer := &Answer{Text: raw.AbstractText}
	if answer.Text == "" {
		if raw.Answer != "" {
			answer.Text = raw.Answer
		} else if len(raw.RelatedTopics) > 0 {
			answer.Text = raw.RelatedTopics[0].Text
		}
	}

	if answer.Text != "" && raw.AbstractURL != "" {
		title := raw.Abstract
		if title == "" {
			title = "DuckDuckGo Result"
		}
		answer.References = append(answer.References, core.Reference{
			Title:   title,
			URL:     raw.AbstractURL,
			Snippet: truncate(answer.Text, snippetLimit),
		})
	}
	for _, topic := range raw.RelatedTopics {
		if len(answer.References) >= 3 {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" || topic.FirstURL == raw.AbstractURL {
			continue
		}
		answer.References = append(answer.References, core.Reference{
			Title:   topic.Text,
			URL:     topic.FirstURL,
			Snippet: truncate(topic.Text, snippetLimit),
		})
	}

	return answer, nil
}

// SearchURL is the address of a manual search for the query, used in
// degraded answers.
func SearchURL(query string) string {
	return "https://duckduckgo.com/?q=" + url.QueryEscape(query)
}

// truncate shortens s to at most n runes, never splitting a multibyte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
