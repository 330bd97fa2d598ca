package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

const systemPrompt = `You are an assistant that answers questions based exclusively on the provided documents.
Use only information present in the documents.
If the information is not in the documents, say honestly that you cannot answer from the provided documents.
Cite the specific sources (document names and pages) where possible.
Keep answers concise, accurate and informative.`

// Generator assembles a bounded-length prompt from retrieved chunks and
// asks the language model for a grounded answer.
type Generator struct {
	llm     port.LLM
	budget  int // token budget for the retrieved context block
	encoder *tiktoken.Tiktoken
	log     *zap.Logger
}

func NewGenerator(llm port.LLM, contextBudget int, log *zap.Logger) *Generator {
	if contextBudget <= 0 {
		contextBudget = 4000
	}

	// cl100k_base covers the gpt-4 family; when the encoding is not
	// available (offline), countTokens falls back to a length heuristic.
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn("tiktoken encoding unavailable, using length heuristic", zap.Error(err))
		encoder = nil
	}

	return &Generator{
		llm:     llm,
		budget:  contextBudget,
		encoder: encoder,
		log:     log,
	}
}

// Answer generates a grounded answer for the question from the retrieval
// results. Chunks are added to the prompt highest score first until the
// token budget is exhausted; chunks that do not fit are dropped whole.
// The returned Answer cites exactly the chunks that made it into the
// prompt. A provider failure wraps domain.ErrGeneration.
func (g *Generator) Answer(ctx context.Context, question string, results []domain.ScoredChunk) (domain.Answer, error) {
	context_, cited := g.buildContext(results)

	userPrompt := fmt.Sprintf("Documents:\n%s\nQuestion: %s\n\nAnswer (based only on the provided documents):", context_, question)

	text, err := g.llm.GenerateWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	return domain.Answer{
		Text:    strings.TrimSpace(text),
		Sources: cited,
	}, nil
}

// buildContext formats as many of the top chunks as fit the budget.
// The first chunk is always included so the model never sees an empty
// context block.
func (g *Generator) buildContext(results []domain.ScoredChunk) (string, []domain.Chunk) {
	var sb strings.Builder
	var cited []domain.Chunk
	used := 0

	for i, sc := range results {
		block := formatChunk(sc.Chunk)
		tokens := g.countTokens(block)

		if i > 0 && used+tokens > g.budget {
			g.log.Debug("context budget reached",
				zap.Int("included", len(cited)),
				zap.Int("dropped", len(results)-len(cited)))
			break
		}

		sb.WriteString(block)
		used += tokens
		cited = append(cited, sc.Chunk)
	}

	return sb.String(), cited
}

func formatChunk(c domain.Chunk) string {
	return fmt.Sprintf("--- Document: %s (page %d) ---\n%s\n", c.SourcePath, c.Page, c.Text)
}

func (g *Generator) countTokens(text string) int {
	if g.encoder != nil {
		return len(g.encoder.Encode(text, nil, nil))
	}
	// Rough heuristic: about four characters per token.
	return (len(text) + 3) / 4
}
