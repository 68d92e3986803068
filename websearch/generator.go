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
	"log/slog"
	"strings"

	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/core"
)

// GeneratorName is how the search-backed generator registers itself.
const GeneratorName = "websearch"

// excerptLimit caps how much extracted page text is folded into an answer.
const excerptLimit = 1200

// Generator answers prompts by searching the web instead of calling a model.
// It satisfies the same interface as model backends, so the provider registry
// can rank it alongside them as a last-resort answer source.
type Generator struct {
	client    *Client
	extractor *Extractor
	logger    *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// GeneratorOption is a functional option for configuring a Generator.
type GeneratorOption func(*Generator)

// WithPageExtraction enriches answers with the readable content of the top
// reference.
func WithPageExtraction(extractor *Extractor) GeneratorOption {
	return func(g *Generator) {
		g.extractor = extractor
	}
}

// NewGenerator wraps a search client as an answer backend.
func NewGenerator(client *Client, opts ...GeneratorOption) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("websearch: client is required")
	}
	g := &Generator{
		client: client,
		logger: slog.Default().With("component", "websearch"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name identifies this backend in the provider registry.
func (g *Generator) Name() string {
	return GeneratorName
}

// Generate treats the prompt as a search query. No useful results is not an
// error: a degraded answer pointing at a manual search is returned instead.
// The temperature parameter is accepted for interface compatibility and
// ignored.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	answer, err := g.client.Search(ctx, prompt)
	if err != nil {
		return "", err
	}

	excerpt := g.topReferenceExcerpt(ctx, answer.References)

	if answer.Text == "" && excerpt == "" {
		g.logger.Debug("no instant answer, degrading", "query", prompt)
		return DegradedAnswer(prompt), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if excerpt != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(excerpt)
	}
	if len(answer.References) > 0 {
		b.WriteString("\n\nFuentes:\n")
		for _, ref := range answer.References {
			fmt.Fprintf(&b, "- %s\n", ref.URL)
		}
	}
	return b.String(), nil
}

// topReferenceExcerpt fetches the first reference and returns a bounded
// excerpt of its readable content. Extraction is best-effort: any failure
// yields an empty excerpt and the answer falls back to the instant text.
func (g *Generator) topReferenceExcerpt(ctx context.Context, references []core.Reference) string {
	if g.extractor == nil || len(references) == 0 {
		return ""
	}

	page, err := g.extractor.Extract(ctx, references[0].URL)
	if err != nil {
		g.logger.Debug("page extraction failed", "url", references[0].URL, "err", err)
		return ""
	}
	if page.Text == "" {
		return ""
	}

	runes := []rune(page.Text)
	if len(runes) > excerptLimit {
		runes = runes[:excerptLimit]
	}
	return string(runes)
}

// DegradedAnswer is returned when the web has nothing specific for the query.
func DegradedAnswer(query string) string {
	return fmt.Sprintf(
		"No se encontraron resultados específicos para '%s' en la búsqueda web. "+
			"Intenta reformular tu pregunta o proporciona más contexto. "+
			"Búsqueda manual: %s", query, SearchURL(query))
}
