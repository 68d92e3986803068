// Package websearch is the fallback answer source when neither the corpus
// nor memory can serve a query. It wraps the DuckDuckGo Instant Answer API
// in a small JSON client, extracts readable page content with go-readability,
// and exposes the whole thing as a Generator so the provider registry can
// rank it alongside model backends.
package websearch
