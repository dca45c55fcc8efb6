package chunking

import (
	"context"
	"strings"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
)

// sentenceChunker packs whole sentences greedily until the size limit.
// Sentences longer than the limit become their own oversized chunk rather
// than being split mid-sentence.
type sentenceChunker struct {
	size int
}

func (s *sentenceChunker) Chunk(_ context.Context, text string, metadata map[string]any) ([]docModel.Chunk, error) {
	sentences := splitSentences(text)

	var spans []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+1+len(sentence) > s.size {
			spans = append(spans, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		spans = append(spans, current.String())
	}
	return toChunks(spans, MethodSentence, metadata), nil
}

// splitSentences breaks text on terminal punctuation followed by
// whitespace. Terminators stay attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
