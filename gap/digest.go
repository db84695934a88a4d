package gap

import (
	"context"
	"strings"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/gaps/store"
)

// Datastore is the read surface the pipeline needs. Every method returns the
// empty default together with any error; a missing table is not an error.
// *store.Store implements it.
type Datastore interface {
	GetUnderstanding(ctx context.Context, userID string) (*store.UserUnderstanding, error)
	ListActiveProfileFacts(ctx context.Context, userID string, limit int) ([]store.ProfileFact, error)
	ListActiveInsights(ctx context.Context, userID string, limit int) ([]store.Insight, error)
	ListBehaviorPatterns(ctx context.Context, userID string, limit int) ([]store.BehaviorPattern, error)
	ListProactiveQuestions(ctx context.Context, userID string, limit int) ([]store.ProactiveQuestion, error)
	ListProjects(ctx context.Context, userID string, limit int) ([]store.Project, error)
	ListMilestones(ctx context.Context, projectIDs []int64, perProject int) ([]store.Milestone, error)
	ListConversationSummaries(ctx context.Context, userID string, limit int) ([]store.ConversationSummary, error)
	ListRecentTurns(ctx context.Context, userID string, surface store.Surface, limit int) ([]store.Turn, error)
	ListDailyLogs(ctx context.Context, userID string, limit int) ([]store.DailyLog, error)
}

var _ Datastore = (*store.Store)(nil)

// ProjectDigest is a project with its capped milestone list.
type ProjectDigest struct {
	store.Project
	Milestones []store.Milestone `json:"milestones"`
}

// Digest is the capped snapshot of one user's records, assembled fresh for
// each invocation. Lists are never nil.
type Digest struct {
	UserID        string                      `json:"user_id"`
	Understanding *store.UserUnderstanding    `json:"understanding,omitempty"`
	Facts         []store.ProfileFact         `json:"facts"`
	Insights      []store.Insight             `json:"insights"`
	Patterns      []store.BehaviorPattern     `json:"patterns"`
	Questions     []store.ProactiveQuestion   `json:"questions"`
	Projects      []ProjectDigest             `json:"projects"`
	Summaries     []store.ConversationSummary `json:"summaries"`
	Turns         []store.Turn                `json:"turns"`
	DailyLogs     []store.DailyLog            `json:"daily_logs"`
}

// SuccessDefined reports whether a non-blank definition of success is recorded.
func (d *Digest) SuccessDefined() bool {
	return d.Understanding != nil && strings.TrimSpace(d.Understanding.DefinitionOfSuccess) != ""
}

// Limits bounds the digest. Item caps apply to lists before formatting,
// character ceilings to each formatted block after it.
type Limits struct {
	Facts                int `yaml:"facts"`
	Insights             int `yaml:"insights"`
	Patterns             int `yaml:"patterns"`
	Questions            int `yaml:"questions"`
	Projects             int `yaml:"projects"`
	MilestonesPerProject int `yaml:"milestones_per_project"`
	Summaries            int `yaml:"summaries"`
	TurnsPerSurface      int `yaml:"turns_per_surface"`
	DailyLogs            int `yaml:"daily_logs"`
	Signals              int `yaml:"signals"`

	UnderstandingChars int `yaml:"understanding_chars"`
	FactsChars         int `yaml:"facts_chars"`
	InsightsChars      int `yaml:"insights_chars"`
	ProjectsChars      int `yaml:"projects_chars"`
	ConversationsChars int `yaml:"conversations_chars"`
	PatternsChars      int `yaml:"patterns_chars"`
	SignalsChars       int `yaml:"signals_chars"`
	QuestionsChars     int `yaml:"questions_chars"`

	TurnChars        int `yaml:"turn_chars"`
	SummaryChars     int `yaml:"summary_chars"`
	InsightLineChars int `yaml:"insight_line_chars"`
}

// minSummaries is the summary count below which raw turns fill in.
const minSummaries = 2

// DefaultLimits returns the default caps and ceilings.
func DefaultLimits() Limits {
	return Limits{
		Facts:                60,
		Insights:             40,
		Patterns:             10,
		Questions:            20,
		Projects:             5,
		MilestonesPerProject: 8,
		Summaries:            6,
		TurnsPerSurface:      4,
		DailyLogs:            14,
		Signals:              8,

		UnderstandingChars: 1500,
		FactsChars:         1500,
		InsightsChars:      2500,
		ProjectsChars:      1500,
		ConversationsChars: 2000,
		PatternsChars:      1000,
		SignalsChars:       800,
		QuestionsChars:     1000,

		TurnChars:        300,
		SummaryChars:     300,
		InsightLineChars: 200,
	}
}

// WithDefaults fills every unset (zero or negative) field from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	out := l
	clearNegative(&out)
	if err := mergo.Merge(&out, DefaultLimits()); err != nil {
		return DefaultLimits()
	}
	return out
}

func clearNegative(l *Limits) {
	for _, f := range []*int{
		&l.Facts, &l.Insights, &l.Patterns, &l.Questions, &l.Projects, &l.MilestonesPerProject,
		&l.Summaries, &l.TurnsPerSurface, &l.DailyLogs, &l.Signals,
		&l.UnderstandingChars, &l.FactsChars, &l.InsightsChars, &l.ProjectsChars, &l.ConversationsChars,
		&l.PatternsChars, &l.SignalsChars, &l.QuestionsChars,
		&l.TurnChars, &l.SummaryChars, &l.InsightLineChars,
	} {
		if *f < 0 {
			*f = 0
		}
	}
}
