package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pdfrag/internal/adapter/llm"
	"pdfrag/internal/domain"
)

var testChunks = []domain.Chunk{
	{ID: "c1", SourcePath: "/docs/a.pdf", Page: 1, Text: "The widget frobnicates the gadget using calibrated torque."},
}

func TestEvaluateParsesJudgeScores(t *testing.T) {
	mock := &llm.MockLLM{Response: "relevance: 4\nfaithfulness: 5\nWell grounded answer."}
	e := NewEvaluator(mock, zap.NewNop())

	scores, err := e.Evaluate(context.Background(), "How does the widget work?", "It frobnicates the gadget.", testChunks)
	require.NoError(t, err)

	assert.Equal(t, 4.0, scores.Relevance)
	assert.Equal(t, 5.0, scores.Faithfulness)
	assert.Contains(t, scores.Commentary, "Well grounded")
}

func TestEvaluateFallsBackOnJudgeError(t *testing.T) {
	mock := &llm.MockLLM{Err: errors.New("provider down")}
	e := NewEvaluator(mock, zap.NewNop())

	scores, err := e.Evaluate(context.Background(), "widget torque", "calibrated torque frobnicates", testChunks)
	require.NoError(t, err)

	assert.Equal(t, "lexical overlap fallback", scores.Commentary)
	assert.GreaterOrEqual(t, scores.Relevance, 1.0)
	assert.LessOrEqual(t, scores.Relevance, 5.0)
	assert.Greater(t, scores.Faithfulness, 1.0) // answer words appear in the chunk
}

func TestEvaluateFallsBackOnUnparseableJudge(t *testing.T) {
	mock := &llm.MockLLM{Response: "I think it's pretty good overall!"}
	e := NewEvaluator(mock, zap.NewNop())

	scores, err := e.Evaluate(context.Background(), "q", "a", testChunks)
	require.NoError(t, err)
	assert.Equal(t, "lexical overlap fallback", scores.Commentary)
}

func TestParseJudgeRejectsOutOfRange(t *testing.T) {
	_, ok := parseJudge("relevance: 9\nfaithfulness: 3")
	assert.False(t, ok)
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 1.0, overlap("calibrated torque", "calibrated torque gadget"))
	assert.Equal(t, 0.0, overlap("unrelated words", "calibrated torque"))
	assert.Equal(t, 0.0, overlap("", "anything"))
}
