package gap

import (
	"context"

	"github.com/aschepis/backscratcher/gaps/llm"
	"github.com/rs/zerolog"
)

// Source tells the caller where a result came from. Both values are
// legitimate output.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Default completion budgets.
const (
	DefaultQuestionMaxTokens int64 = 400
	DefaultAnalysisMaxTokens int64 = 1200
)

// QuestionResult is the outcome of GenerateGapQuestion.
type QuestionResult struct {
	Gap         string `json:"gap"`
	Question    string `json:"question"`
	RawResponse string `json:"raw_response"`
	Source      Source `json:"source"`
}

// AnalysisResult is the outcome of GenerateGapAnalysis.
type AnalysisResult struct {
	Gaps                 []Gap  `json:"gaps"`
	RecommendedGapID     GapID  `json:"recommended_gap_id"`
	RecommendationReason string `json:"recommendation_reason"`
	RawResponse          string `json:"raw_response"`
	Source               Source `json:"source"`
}

// Options configures a Service. Zero values take defaults.
type Options struct {
	Model             string
	Temperature       *float64
	QuestionMaxTokens int64
	AnalysisMaxTokens int64
	Limits            Limits
}

// Service runs the gap pipeline: assemble, mine, prompt, parse, and fall
// back. A nil client means no completion credentials are configured.
type Service struct {
	client llm.Client
	opts   Options
	logger zerolog.Logger
}

// NewService creates and returns a Service.
func NewService(client llm.Client, opts Options, logger zerolog.Logger) *Service {
	if opts.QuestionMaxTokens <= 0 {
		opts.QuestionMaxTokens = DefaultQuestionMaxTokens
	}
	if opts.AnalysisMaxTokens <= 0 {
		opts.AnalysisMaxTokens = DefaultAnalysisMaxTokens
	}
	opts.Limits = opts.Limits.WithDefaults()
	return &Service{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "gapService").Logger(),
	}
}

// GenerateGapQuestion finds the single most valuable missing fact about
// userID and a question that would close it. It always returns a usable
// result.
func (s *Service) GenerateGapQuestion(ctx context.Context, ds Datastore, userID string) QuestionResult {
	digest, sections := s.prepare(ctx, ds, userID)

	fb := FallbackQuestion(digest)
	result := QuestionResult{Gap: fb.Gap, Question: fb.Question, Source: SourceFallback}

	raw, ok := s.complete(ctx, "question", userID, BuildQuestionPrompt(sections), s.opts.QuestionMaxTokens)
	if !ok {
		return result
	}
	result.RawResponse = raw

	parsed := ParseQuestion(raw)
	if !parsed.Valid {
		s.logger.Warn().Str("user_id", userID).Str("operation", "question").Msg("Model output unparseable; using fallback")
		return result
	}
	return QuestionResult{
		Gap:         parsed.Value.Gap,
		Question:    parsed.Value.Question,
		RawResponse: raw,
		Source:      SourceAI,
	}
}

// GenerateGapAnalysis ranks the top three gaps in what is known about
// userID. It always returns a usable result.
func (s *Service) GenerateGapAnalysis(ctx context.Context, ds Datastore, userID string) AnalysisResult {
	digest, sections := s.prepare(ctx, ds, userID)

	fb := FallbackAnalysis(digest)
	result := AnalysisResult{
		Gaps:                 fb.Gaps,
		RecommendedGapID:     fb.RecommendedGapID,
		RecommendationReason: fb.RecommendationReason,
		Source:               SourceFallback,
	}

	raw, ok := s.complete(ctx, "analysis", userID, BuildAnalysisPrompt(sections), s.opts.AnalysisMaxTokens)
	if !ok {
		return result
	}
	result.RawResponse = raw

	parsed := ParseAnalysis(raw)
	if !parsed.Valid {
		s.logger.Warn().Str("user_id", userID).Str("operation", "analysis").Msg("Model output unparseable; using fallback")
		return result
	}
	return AnalysisResult{
		Gaps:                 parsed.Value.Gaps,
		RecommendedGapID:     parsed.Value.RecommendedGapID,
		RecommendationReason: parsed.Value.RecommendationReason,
		RawResponse:          raw,
		Source:               SourceAI,
	}
}

func (s *Service) prepare(ctx context.Context, ds Datastore, userID string) (*Digest, Sections) {
	digest := Assemble(ctx, ds, userID, s.opts.Limits, s.logger)
	signals := MinePatterns(digest, s.opts.Limits.Signals)
	return digest, FormatDigest(digest, signals, s.opts.Limits)
}

// complete makes the one completion call. It reports false when there is no
// client or the call failed; failures are logged, never retried.
func (s *Service) complete(ctx context.Context, operation, userID string, prompt Prompt, maxTokens int64) (string, bool) {
	if s.client == nil {
		s.logger.Debug().Str("user_id", userID).Str("operation", operation).Msg("No completion client configured; using fallback")
		return "", false
	}

	req := llm.NewPromptRequest(s.opts.Model, prompt.User, maxTokens)
	req.System = prompt.System
	req.Temperature = s.opts.Temperature

	resp, err := s.client.Synchronous(ctx, req)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("operation", operation).
			Str("error_type", string(llm.TypeOf(err))).
			Bool("retryable", llm.IsRetryableError(err)).
			Msg("Completion call failed; using fallback")
		return "", false
	}
	return resp.Text(), true
}
