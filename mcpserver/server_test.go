package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aschepis/backscratcher/gaps/gap"
	"github.com/aschepis/backscratcher/gaps/migrations"
	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite3", ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, migrations.RunMigrations(db, zerolog.Nop()))

	st := store.NewStore(db, store.DialectSQLite, zerolog.Nop())
	svc := gap.NewService(nil, gap.Options{}, zerolog.Nop())
	return New(svc, st, st, zerolog.Nop()), st
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestQuestionToolRequiresUserID(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleQuestion(context.Background(), call("generate_gap_question", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestQuestionToolReturnsFallbackJSON(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleQuestion(context.Background(), call("generate_gap_question", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out questionResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, gap.SourceFallback, out.Source)
	assert.NotEmpty(t, out.Gap)
	assert.NotEmpty(t, out.Question)
	assert.Zero(t, out.QuestionID)
}

func TestQuestionToolRecordsAndAnswers(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleQuestion(ctx, call("generate_gap_question", map[string]any{"user_id": "u1", "record": true}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out questionResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.NotZero(t, out.QuestionID)

	qs, err := st.ListProactiveQuestions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.True(t, qs[0].Unanswered())
	assert.Equal(t, "fallback", qs[0].Source)

	res, err = s.handleAnswered(ctx, call("mark_question_answered", map[string]any{"question_id": float64(out.QuestionID)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	qs, err = st.ListProactiveQuestions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.False(t, qs[0].Unanswered())
	assert.NotNil(t, qs[0].AnsweredAt)
}

func TestMarkUnknownQuestionIsToolError(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleAnswered(context.Background(), call("mark_question_answered", map[string]any{"question_id": float64(99)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAnalysisToolReturnsThreeGaps(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleAnalysis(context.Background(), call("generate_gap_analysis", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out gap.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, gap.SourceFallback, out.Source)
	assert.Len(t, out.Gaps, 3)
	assert.Equal(t, gap.GapOne, out.RecommendedGapID)
}

func toolNames(t *testing.T, s *Server) []string {
	t.Helper()
	msg := s.MCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))
	names := make([]string, 0, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	assert.ElementsMatch(t,
		[]string{"generate_gap_question", "generate_gap_analysis", "mark_question_answered"},
		toolNames(t, s))

	bare := New(gap.NewService(nil, gap.Options{}, zerolog.Nop()), nil, nil, zerolog.Nop())
	assert.ElementsMatch(t, []string{"generate_gap_question", "generate_gap_analysis"}, toolNames(t, bare))
}
