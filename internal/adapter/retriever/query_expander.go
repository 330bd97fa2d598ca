package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

// QueryExpander asks the language model to paraphrase a question into
// alternative phrasings that broaden retrieval recall. Expansion never
// fails hard: on any error the original question is returned alone.
type QueryExpander struct {
	llm      port.LLM
	variants int
	log      *zap.Logger
}

func NewQueryExpander(llm port.LLM, variants int, log *zap.Logger) *QueryExpander {
	if variants <= 0 {
		variants = 3
	}
	return &QueryExpander{llm: llm, variants: variants, log: log}
}

// Expand returns the original question followed by up to variants distinct
// paraphrases, most useful first.
func (e *QueryExpander) Expand(ctx context.Context, question string) ([]string, error) {
	if e.llm == nil {
		return []string{question}, nil
	}

	systemPrompt := fmt.Sprintf(`You are a search query expansion assistant for a document question-answering system.
Given a user's question, generate %d alternative questions that:
- Rephrase the original question in different ways
- Explore different aspects of the same question
- Use different terminology while keeping the same meaning

Output ONLY the alternative questions, one per line. Do not include explanations or numbering.`, e.variants)

	userPrompt := fmt.Sprintf("Original question: %s\n\nGenerate alternative questions:", question)

	response, err := e.llm.GenerateWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		e.log.Warn("falling back to single query",
			zap.Error(fmt.Errorf("%w: %v", domain.ErrExpansion, err)))
		return []string{question}, nil
	}

	queries := []string{question}
	seen := map[string]bool{normalize(question): true}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line == "" {
			continue
		}
		if seen[normalize(line)] {
			continue
		}
		seen[normalize(line)] = true
		queries = append(queries, line)

		if len(queries) > e.variants {
			break
		}
	}

	return queries, nil
}

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
