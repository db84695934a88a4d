package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/gaps/gap"
	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweep modes.
const (
	ModeQuestion = "question"
	ModeAnalysis = "analysis"
)

// defaultUserTimeout bounds the work done for one user in a sweep.
const defaultUserTimeout = 2 * time.Minute

// Generator produces gap results. *gap.Service implements it.
type Generator interface {
	GenerateGapQuestion(ctx context.Context, ds gap.Datastore, userID string) gap.QuestionResult
	GenerateGapAnalysis(ctx context.Context, ds gap.Datastore, userID string) gap.AnalysisResult
}

// QuestionRecorder persists a question as sent. *store.Store implements it.
type QuestionRecorder interface {
	RecordProactiveQuestion(ctx context.Context, q *store.ProactiveQuestion) (int64, error)
}

// SweepOptions configures what a sweep does for each user.
type SweepOptions struct {
	Users       []string
	Mode        string
	Record      bool
	UserTimeout time.Duration
}

// SweepResult is what one sweep produced for one user.
type SweepResult struct {
	UserID     string
	Mode       string
	Source     gap.Source
	Gap        string
	Question   string
	QuestionID int64
	Err        error
}

// Sweeper runs the gap pipeline for a fixed set of users on a schedule.
type Sweeper struct {
	gen      Generator
	ds       gap.Datastore
	recorder QuestionRecorder
	schedule cron.Schedule
	opts     SweepOptions
	logger   zerolog.Logger
}

// NewSweeper creates a new Sweeper. recorder may be nil when opts.Record is false.
func NewSweeper(gen Generator, ds gap.Datastore, recorder QuestionRecorder, schedule cron.Schedule, opts SweepOptions, logger zerolog.Logger) (*Sweeper, error) {
	if gen == nil || ds == nil {
		return nil, fmt.Errorf("generator and datastore are required")
	}
	if schedule == nil {
		return nil, fmt.Errorf("schedule is required")
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeQuestion
	case ModeQuestion, ModeAnalysis:
	default:
		return nil, fmt.Errorf("unknown sweep mode %q", opts.Mode)
	}
	if opts.Record && recorder == nil {
		return nil, fmt.Errorf("recording questions requires a recorder")
	}
	if opts.UserTimeout <= 0 {
		opts.UserTimeout = defaultUserTimeout
	}
	return &Sweeper{
		gen:      gen,
		ds:       ds,
		recorder: recorder,
		schedule: schedule,
		opts:     opts,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}, nil
}

// Start runs sweeps on the schedule until ctx is cancelled. A sweep that is
// still running when the next one is due causes that run to be skipped.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Int("users", len(s.opts.Users)).Str("mode", s.opts.Mode).Msg("Starting sweeper")

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))
	c.Start()

	<-ctx.Done()
	s.logger.Info().Msg("Sweeper stopping: context cancelled")
	<-c.Stop().Done()
}

// RunOnce sweeps every configured user once, sequentially.
func (s *Sweeper) RunOnce(ctx context.Context) []SweepResult {
	results := make([]SweepResult, 0, len(s.opts.Users))
	for _, userID := range s.opts.Users {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.sweepUser(ctx, userID))
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info().Int("users", len(results)).Int("failed", failed).Msg("Sweep complete")
	return results
}

func (s *Sweeper) sweepUser(ctx context.Context, userID string) SweepResult {
	ctx, cancel := context.WithTimeout(ctx, s.opts.UserTimeout)
	defer cancel()

	result := SweepResult{UserID: userID, Mode: s.opts.Mode}
	if s.opts.Mode == ModeAnalysis {
		a := s.gen.GenerateGapAnalysis(ctx, s.ds, userID)
		result.Source = a.Source
		for _, g := range a.Gaps {
			if g.ID == a.RecommendedGapID {
				result.Gap = g.Description
			}
		}
		s.logger.Info().Str("user_id", userID).Str("source", string(a.Source)).Int("gaps", len(a.Gaps)).Msg("Swept user")
		return result
	}

	q := s.gen.GenerateGapQuestion(ctx, s.ds, userID)
	result.Source, result.Gap, result.Question = q.Source, q.Gap, q.Question
	if s.opts.Record {
		id, err := s.recorder.RecordProactiveQuestion(ctx, &store.ProactiveQuestion{
			UserID:   userID,
			Gap:      q.Gap,
			Question: q.Question,
			Source:   string(q.Source),
		})
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record question")
			result.Err = err
			return result
		}
		result.QuestionID = id
	}
	s.logger.Info().Str("user_id", userID).Str("source", string(q.Source)).Int64("question_id", result.QuestionID).Msg("Swept user")
	return result
}
