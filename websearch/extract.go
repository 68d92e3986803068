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
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	// DefaultMaxChars caps extracted page text.
	DefaultMaxChars = 12000

	defaultExtractTimeout = 30 * time.Second
)

// Page is the readable content of a fetched web page.
type Page struct {
	URL    string
	Title  string
	Byline string
	Text   string
}

// Extractor fetches pages and isolates their main content.
type Extractor struct {
	httpClient *http.Client
	maxChars   int
	userAgent  string
}

// ExtractorOption is a functional option for configuring an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorHTTPClient overrides the HTTP client.
func WithExtractorHTTPClient(httpClient *http.Client) ExtractorOption {
	return func(e *Extractor) {
		e.httpClient = httpClient
	}
}

// WithMaxChars caps extracted text length.
func WithMaxChars(n int) ExtractorOption {
	return func(e *Extractor) {
		e.maxChars = n
	}
}

// WithUserAgent sets the User-Agent header on fetches.
func WithUserAgent(userAgent string) ExtractorOption {
	return func(e *Extractor) {
		e.userAgent = userAgent
	}
}

// NewExtractor creates an Extractor with sane fetch limits.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		httpClient: &http.Client{Timeout: defaultExtractTimeout},
		maxChars:   DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxChars <= 0 {
		e.maxChars = DefaultMaxChars
	}
	return e
}

// Extract fetches link and returns its readable content.
func (e *Extractor) Extract(ctx context.Context, link string) (*Page, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, fmt.Errorf("%w: empty url", ErrExtractFailed)
	}
	pageURL, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrExtractFailed, resp.StatusCode, link)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractFailed, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if runes := []rune(text); len(runes) > e.maxChars {
		text = string(runes[:e.maxChars])
	}

	return &Page{
		URL:    link,
		Title:  strings.TrimSpace(article.Title),
		Byline: strings.TrimSpace(article.Byline),
		Text:   text,
	}, nil
}
