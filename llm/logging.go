package llm

import (
	"context"

	"github.com/rs/zerolog"
)

// NewLoggingMiddleware returns a Middleware that logs every completion call:
// token usage on success, error type on failure.
func NewLoggingMiddleware(provider string, logger zerolog.Logger) Middleware {
	logger = logger.With().Str("component", "llm").Str("provider", provider).Logger()
	return MiddlewareFunc{
		BeforeRequestFunc: func(ctx context.Context, req *Request) (*Request, error) {
			logger.Debug().
				Str("model", req.Model).
				Int64("max_tokens", req.MaxTokens).
				Int("messages", len(req.Messages)).
				Bool("system", req.System != "").
				Msg("Sending completion request")
			return req, nil
		},
		AfterResponseFunc: func(ctx context.Context, req *Request, resp *Response) (*Response, error) {
			evt := logger.Info().
				Str("model", req.Model).
				Str("stop_reason", resp.StopReason).
				Int("chars", len(resp.Text()))
			if resp.Usage != nil {
				evt = evt.
					Int64("input_tokens", resp.Usage.InputTokens).
					Int64("output_tokens", resp.Usage.OutputTokens)
			}
			evt.Msg("Completion received")
			return resp, nil
		},
		OnErrorFunc: func(ctx context.Context, req *Request, err error) error {
			evt := logger.Warn().
				Err(err).
				Str("model", req.Model).
				Str("error_type", string(TypeOf(err))).
				Bool("retryable", IsRetryableError(err))
			if after := ExtractRetryAfter(err); after != nil {
				evt = evt.Dur("retry_after", *after)
			}
			evt.Msg("Completion request failed")
			return nil
		},
	}
}
