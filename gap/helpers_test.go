package gap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aschepis/backscratcher/gaps/llm"
	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/samber/lo"
)

var errBoom = errors.New("boom")

// fakeDatastore returns everything it holds and ignores limits, like a
// backend that does not honour LIMIT.
type fakeDatastore struct {
	understanding *store.UserUnderstanding
	facts         []store.ProfileFact
	insights      []store.Insight
	patterns      []store.BehaviorPattern
	questions     []store.ProactiveQuestion
	projects      []store.Project
	milestones    []store.Milestone
	summaries     []store.ConversationSummary
	turns         map[store.Surface][]store.Turn
	logs          []store.DailyLog

	failing map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeDatastore) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.failing[name] {
		return errBoom
	}
	return nil
}

func (f *fakeDatastore) called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Contains(f.calls, name)
}

func (f *fakeDatastore) GetUnderstanding(_ context.Context, _ string) (*store.UserUnderstanding, error) {
	if err := f.record("understanding"); err != nil {
		return nil, err
	}
	return f.understanding, nil
}

func (f *fakeDatastore) ListActiveProfileFacts(_ context.Context, _ string, _ int) ([]store.ProfileFact, error) {
	if err := f.record("facts"); err != nil {
		return []store.ProfileFact{}, err
	}
	return f.facts, nil
}

func (f *fakeDatastore) ListActiveInsights(_ context.Context, _ string, _ int) ([]store.Insight, error) {
	if err := f.record("insights"); err != nil {
		return []store.Insight{}, err
	}
	return f.insights, nil
}

func (f *fakeDatastore) ListBehaviorPatterns(_ context.Context, _ string, _ int) ([]store.BehaviorPattern, error) {
	if err := f.record("patterns"); err != nil {
		return []store.BehaviorPattern{}, err
	}
	return f.patterns, nil
}

func (f *fakeDatastore) ListProactiveQuestions(_ context.Context, _ string, _ int) ([]store.ProactiveQuestion, error) {
	if err := f.record("questions"); err != nil {
		return []store.ProactiveQuestion{}, err
	}
	return f.questions, nil
}

func (f *fakeDatastore) ListProjects(_ context.Context, _ string, _ int) ([]store.Project, error) {
	if err := f.record("projects"); err != nil {
		return []store.Project{}, err
	}
	return f.projects, nil
}

func (f *fakeDatastore) ListMilestones(_ context.Context, projectIDs []int64, _ int) ([]store.Milestone, error) {
	if err := f.record("milestones"); err != nil {
		return []store.Milestone{}, err
	}
	return lo.Filter(f.milestones, func(m store.Milestone, _ int) bool {
		return lo.Contains(projectIDs, m.ProjectID)
	}), nil
}

func (f *fakeDatastore) ListConversationSummaries(_ context.Context, _ string, _ int) ([]store.ConversationSummary, error) {
	if err := f.record("summaries"); err != nil {
		return []store.ConversationSummary{}, err
	}
	return f.summaries, nil
}

func (f *fakeDatastore) ListRecentTurns(_ context.Context, _ string, surface store.Surface, _ int) ([]store.Turn, error) {
	if err := f.record("turns_" + string(surface)); err != nil {
		return []store.Turn{}, err
	}
	return f.turns[surface], nil
}

func (f *fakeDatastore) ListDailyLogs(_ context.Context, _ string, _ int) ([]store.DailyLog, error) {
	if err := f.record("logs"); err != nil {
		return []store.DailyLog{}, err
	}
	return f.logs, nil
}

// fakeClient answers every request with a canned response or error.
type fakeClient struct {
	text string
	err  error

	mu       sync.Mutex
	requests []*llm.Request
}

func (c *fakeClient) Synchronous(_ context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: []string{c.text}, StopReason: "end_turn"}, nil
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return baseTime.Add(time.Duration(hours) * time.Hour)
}

func intPtr(v int) *int {
	return &v
}

// eveningLogs builds daily logs from moods given oldest first; the result is
// newest first, the way the store returns it.
func eveningLogs(moods ...int) []store.DailyLog {
	logs := make([]store.DailyLog, 0, len(moods))
	for i := len(moods) - 1; i >= 0; i-- {
		logs = append(logs, store.DailyLog{
			UserID:      "u1",
			Date:        baseTime.AddDate(0, 0, i).Format(time.DateOnly),
			EveningMood: intPtr(moods[i]),
		})
	}
	return logs
}

// acmeDatastore is a founder with a goal, one blocker, an active project and
// no recorded definition of success.
func acmeDatastore() *fakeDatastore {
	return &fakeDatastore{
		facts: []store.ProfileFact{
			{ID: 1, UserID: "u1", Category: store.CategoryGoals, Fact: "ship a v1", Active: true, CreatedAt: at(0)},
		},
		insights: []store.Insight{
			{ID: 1, UserID: "u1", Type: store.InsightTypeBlocker, Content: "keeps getting distracted by unrelated features", Importance: 7, Active: true, CreatedAt: at(1)},
		},
		projects: []store.Project{
			{ID: 10, UserID: "u1", Name: "Acme", Status: "active", UpdatedAt: at(2)},
		},
		milestones: []store.Milestone{
			{ID: 100, ProjectID: 10, Title: "Private beta", Status: "in_progress", FocusLevel: store.FocusActive},
		},
	}
}
