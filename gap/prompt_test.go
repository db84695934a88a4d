package gap

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFormatDigestRespectsCeilings(t *testing.T) {
	limits := DefaultLimits()
	for _, summaries := range []bool{true, false} {
		ds := pathologicalDatastore()
		if !summaries {
			ds.summaries = nil
		}
		d := Assemble(context.Background(), ds, "u1", limits, zerolog.Nop())
		s := FormatDigest(d, MinePatterns(d, limits.Signals), limits)

		blocks := map[string]struct {
			text    string
			ceiling int
		}{
			"understanding": {s.Understanding, limits.UnderstandingChars},
			"facts":         {s.Facts, limits.FactsChars},
			"insights":      {s.Insights, limits.InsightsChars},
			"projects":      {s.Projects, limits.ProjectsChars},
			"conversations": {s.Conversations, limits.ConversationsChars},
			"patterns":      {s.Patterns, limits.PatternsChars},
			"signals":       {s.Signals, limits.SignalsChars},
			"questions":     {s.Questions, limits.QuestionsChars},
		}
		for name, b := range blocks {
			assert.NotEmpty(t, b.text, name)
			assert.LessOrEqual(t, utf8.RuneCountInString(b.text), b.ceiling, name)
		}

		ceilingSum := limits.UnderstandingChars + limits.FactsChars + limits.InsightsChars + limits.ProjectsChars +
			limits.ConversationsChars + limits.PatternsChars + limits.SignalsChars + limits.QuestionsChars
		p := BuildAnalysisPrompt(s)
		assert.Equal(t, analysisInstructions, p.System)
		assert.Less(t, utf8.RuneCountInString(p.User), ceilingSum+len(digestTemplate))
	}
}

func TestFormatDigestEmptyBlocks(t *testing.T) {
	s := FormatDigest(&Digest{}, []string{SparseSignal}, DefaultLimits())
	assert.Equal(t, "No structured understanding recorded yet.", s.Understanding)
	assert.Equal(t, noneRecorded, s.Facts)
	assert.Equal(t, noneRecorded, s.Projects)
	assert.Equal(t, noneRecorded, s.Conversations)
	assert.Equal(t, "- "+SparseSignal, s.Signals)
}

func TestFormatDigestLineCeilings(t *testing.T) {
	limits := DefaultLimits()
	d := &Digest{
		Insights: []store.Insight{{Type: "observation", Importance: 4, Content: strings.Repeat("word ", 200)}},
		Turns:    []store.Turn{{Surface: store.SurfaceChat, Role: "user", Content: strings.Repeat("talk ", 200)}},
	}
	s := FormatDigest(d, nil, limits)

	insightLine := strings.TrimPrefix(s.Insights, "- ")
	assert.LessOrEqual(t, utf8.RuneCountInString(insightLine), limits.InsightLineChars)
	assert.True(t, strings.HasSuffix(insightLine, ellipsis))

	turnText := strings.TrimPrefix(s.Conversations, "- [chat/user] ")
	assert.LessOrEqual(t, utf8.RuneCountInString(turnText), limits.TurnChars)
}

func TestBuildPrompts(t *testing.T) {
	ds := acmeDatastore()
	d := Assemble(context.Background(), ds, "u1", DefaultLimits(), zerolog.Nop())
	s := FormatDigest(d, MinePatterns(d, 8), DefaultLimits())

	question := BuildQuestionPrompt(s)
	assert.Contains(t, question.User, "Acme")
	assert.Contains(t, question.User, "[active] Private beta")
	assert.Contains(t, question.System, "GAP:")
	assert.Contains(t, question.System, `{"gap":`)
	assert.NotContains(t, question.System, "Acme")
	assert.NotContains(t, question.User, "{{")

	analysis := BuildAnalysisPrompt(s)
	assert.Contains(t, analysis.System, "GAP 3:")
	assert.Contains(t, analysis.System, "RECOMMENDED:")
	assert.Contains(t, analysis.System, `"recommended_gap_id"`)
	assert.Contains(t, analysis.System, "Stale information")
	assert.Contains(t, analysis.User, "keeps getting distracted by unrelated features")
	assert.NotContains(t, analysis.User, "{{")
}
