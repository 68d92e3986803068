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


package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 300

	// DefaultChunkOverlap carries this many trailing characters of one chunk
	// into the start of the next, preserving context across boundaries.
	DefaultChunkOverlap = 50
)

// defaultSeparators are tried in order, from strongest to weakest boundary.
var defaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " "}

// Splitter breaks raw extracted text into overlapping chunks, preferring to
// cut at paragraph and sentence boundaries. Lengths are measured in runes so
// multibyte characters never split.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter creates a Splitter. Non-positive sizes fall back to defaults;
// overlap is capped below chunkSize.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into chunks of at most chunkSize runes.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.merge(s.pieces(text, 0))
}

// pieces recursively breaks text at the strongest separator that divides it,
// falling back to a hard rune cut when nothing else fits.
func (s *Splitter) pieces(text string, sepIndex int) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	if sepIndex >= len(s.separators) {
		return s.hardCut(text)
	}

	parts := strings.SplitAfter(text, s.separators[sepIndex])
	if len(parts) == 1 {
		return s.pieces(text, sepIndex+1)
	}

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, s.pieces(part, sepIndex+1)...)
	}
	return out
}

func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > s.chunkSize {
		out = append(out, string(runes[:s.chunkSize]))
		runes = runes[s.chunkSize:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// merge packs pieces back into chunks up to chunkSize, seeding each new chunk
// with the tail of the previous one for overlap.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() string {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		currentLen = 0
		return chunk
	}

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if currentLen > 0 && currentLen+pieceLen > s.chunkSize {
			chunk := flush()
			if s.overlap > 0 && chunk != "" {
				tail := []rune(chunk)
				if len(tail) > s.overlap {
					tail = tail[len(tail)-s.overlap:]
				}
				current.WriteString(string(tail))
				current.WriteString(" ")
				currentLen = len(tail) + 1
			}
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}
	flush()

	return chunks
}
