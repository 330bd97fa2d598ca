package evaluator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pdfrag/internal/domain"
	"pdfrag/internal/port"
)

// Scores holds advisory quality scores on a 1-5 scale.
type Scores struct {
	Relevance    float64 `json:"relevance"`
	Faithfulness float64 `json:"faithfulness"`
	Commentary   string  `json:"commentary,omitempty"`
}

// Evaluator produces offline quality scores for a generated answer
// against the chunks it was grounded in. It asks a judge model first and
// falls back to lexical overlap when the call fails; evaluation is
// advisory and never fails the request.
type Evaluator struct {
	llm port.LLM
	log *zap.Logger
}

func NewEvaluator(llm port.LLM, log *zap.Logger) *Evaluator {
	return &Evaluator{llm: llm, log: log}
}

const judgeSystemPrompt = `You are an expert evaluator of retrieval-augmented generation systems.
Rate the answer below on two criteria, each on a scale from 1 to 5:
- relevance: how pertinent the retrieved documents are to the question
- faithfulness: how well the answer is supported by the retrieved documents

Respond with exactly two lines in the form:
relevance: <number>
faithfulness: <number>
Optionally add a short explanation on following lines.`

func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, chunks []domain.Chunk) (Scores, error) {
	contextText := formatChunks(chunks)

	if e.llm != nil {
		userPrompt := fmt.Sprintf("Question: %s\n\nRetrieved documents:\n%s\nAnswer:\n%s", question, contextText, answer)
		response, err := e.llm.GenerateWithSystem(ctx, judgeSystemPrompt, userPrompt)
		if err == nil {
			if scores, ok := parseJudge(response); ok {
				return scores, nil
			}
			e.log.Warn("judge response unparseable, using lexical overlap")
		} else {
			e.log.Warn("judge call failed, using lexical overlap", zap.Error(err))
		}
	}

	return lexicalScores(question, answer, contextText), nil
}

var scoreLine = regexp.MustCompile(`(?i)(relevance|faithfulness)\s*:\s*([0-9]+(?:\.[0-9]+)?)`)

func parseJudge(response string) (Scores, bool) {
	scores := Scores{}
	foundRelevance, foundFaithfulness := false, false

	var commentary []string
	for _, line := range strings.Split(response, "\n") {
		m := scoreLine.FindStringSubmatch(line)
		if m == nil {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				commentary = append(commentary, trimmed)
			}
			continue
		}

		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil || value < 1 || value > 5 {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "relevance":
			scores.Relevance = value
			foundRelevance = true
		case "faithfulness":
			scores.Faithfulness = value
			foundFaithfulness = true
		}
	}

	scores.Commentary = strings.Join(commentary, " ")
	return scores, foundRelevance && foundFaithfulness
}

// lexicalScores approximates the judge with word overlap, scaled to the
// same 1-5 range.
func lexicalScores(question, answer, contextText string) Scores {
	return Scores{
		Relevance:    1 + 4*overlap(question, contextText),
		Faithfulness: 1 + 4*overlap(answer, contextText),
		Commentary:   "lexical overlap fallback",
	}
}

// overlap is the fraction of distinct words in a that also occur in b.
func overlap(a, b string) float64 {
	aWords := wordSet(a)
	if len(aWords) == 0 {
		return 0
	}
	bWords := wordSet(b)

	matched := 0
	for w := range aWords {
		if bWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(aWords))
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

func formatChunks(chunks []domain.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		sb.WriteString(fmt.Sprintf("--- Document %d: %s (page %d) ---\n%s\n", i+1, c.SourcePath, c.Page, c.Text))
	}
	return sb.String()
}
