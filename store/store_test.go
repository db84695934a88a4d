package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/gaps/migrations"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, migrate bool) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() }) //nolint:errcheck // Test cleanup

	if migrate {
		require.NoError(t, migrations.RunMigrations(db, zerolog.Nop()))
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(openTestDB(t, true), DialectSQLite, zerolog.Nop())
}

func TestUnderstandingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.GetUnderstanding(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u, "no row means nil, not an error")

	require.NoError(t, s.SaveUnderstanding(ctx, &UserUnderstanding{
		UserID:              "u1",
		DefinitionOfSuccess: "Ship Acme to ten paying teams",
		CoreValues:          []string{"craft", "autonomy"},
		Blockers:            []string{"perfectionism"},
	}))
	require.NoError(t, s.SaveUnderstanding(ctx, &UserUnderstanding{
		UserID:              "u1",
		DefinitionOfSuccess: "Ship Acme to twenty paying teams",
		CoreValues:          []string{"craft"},
	}))

	u, err = s.GetUnderstanding(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Ship Acme to twenty paying teams", u.DefinitionOfSuccess)
	assert.Equal(t, []string{"craft"}, u.CoreValues)
	assert.Empty(t, u.Blockers)
	assert.False(t, u.UpdatedAt.IsZero())
}

func TestUnderstandingPlainTextList(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DB().Exec(`INSERT INTO user_understanding (user_id, strengths, updated_at) VALUES ('u1', 'stubborn focus', 1)`)
	require.NoError(t, err)

	u, err := s.GetUnderstanding(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, []string{"stubborn focus"}, u.Strengths)
}

func TestListActiveInsightsOrderingAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	insights := []Insight{
		{UserID: "u1", Type: "observation", Content: "low", Importance: 2, Active: true, CreatedAt: base},
		{UserID: "u1", Type: "blocker", Content: "high old", Importance: 9, Active: true, CreatedAt: base},
		{UserID: "u1", Type: "blocker", Content: "high new", Importance: 9, Active: true, CreatedAt: base.Add(time.Hour)},
		{UserID: "u1", Type: "observation", Content: "inactive", Importance: 10, Active: false, CreatedAt: base},
		{UserID: "u2", Type: "observation", Content: "other user", Importance: 10, Active: true, CreatedAt: base},
	}
	for i := range insights {
		_, err := s.AddInsight(ctx, &insights[i])
		require.NoError(t, err)
	}

	got, err := s.ListActiveInsights(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high new", got[0].Content)
	assert.Equal(t, "high old", got[1].Content)
	assert.True(t, got[0].Active)
}

func TestActiveFlagBoundAsBool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddProfileFact(ctx, &ProfileFact{UserID: "u1", Category: "goals", Fact: "ship a v1", Active: true})
	require.NoError(t, err)
	_, err = s.AddProfileFact(ctx, &ProfileFact{UserID: "u1", Category: "goals", Fact: "retired goal", Active: false})
	require.NoError(t, err)
	// Rows written by other tools carry a plain integer flag.
	_, err = s.DB().ExecContext(ctx,
		`INSERT INTO profile_facts (user_id, category, fact, is_active, created_at) VALUES ('u1', 'skills', 'go', 1, 0), ('u1', 'skills', 'cobol', 0, 0)`)
	require.NoError(t, err)

	var stored []int64
	rows, err := s.DB().QueryContext(ctx, `SELECT is_active FROM profile_facts ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck // Test cleanup
	for rows.Next() {
		var v int64
		require.NoError(t, rows.Scan(&v))
		stored = append(stored, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 0, 1, 0}, stored)

	facts, err := s.ListActiveProfileFacts(ctx, "u1", 10)
	require.NoError(t, err)
	got := make([]string, 0, len(facts))
	for _, f := range facts {
		got = append(got, f.Fact)
	}
	assert.ElementsMatch(t, []string{"ship a v1", "go"}, got)
}

func TestListMilestonesCapsPerProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var projectIDs []int64
	for _, name := range []string{"Acme", "Side quest"} {
		id, err := s.AddProject(ctx, &Project{UserID: "u1", Name: name})
		require.NoError(t, err)
		projectIDs = append(projectIDs, id)
		for i := 0; i < 5; i++ {
			_, err := s.AddMilestone(ctx, &Milestone{ProjectID: id, Title: name + " step", SortOrder: 5 - i})
			require.NoError(t, err)
		}
	}

	got, err := s.ListMilestones(ctx, projectIDs, 3)
	require.NoError(t, err)
	require.Len(t, got, 6)

	perProject := map[int64][]int{}
	for _, m := range got {
		perProject[m.ProjectID] = append(perProject[m.ProjectID], m.SortOrder)
		assert.Equal(t, FocusBacklog, m.FocusLevel)
	}
	for _, id := range projectIDs {
		assert.Equal(t, []int{1, 2, 3}, perProject[id])
	}

	empty, err := s.ListMilestones(ctx, nil, 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListRecentTurnsBySurface(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, content := range []string{"first", "second", "third"} {
		_, err := s.AddTurn(ctx, &Turn{UserID: "u1", Surface: SurfaceCoach, Role: "user", Content: content, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err := s.AddTurn(ctx, &Turn{UserID: "u1", Surface: SurfaceChat, Role: "user", Content: "chat", CreatedAt: base})
	require.NoError(t, err)

	got, err := s.ListRecentTurns(ctx, "u1", SurfaceCoach, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Content)
	assert.Equal(t, SurfaceCoach, got[0].Surface)

	_, err = s.ListRecentTurns(ctx, "u1", Surface("email"), 2)
	var qe *QueryError
	assert.True(t, errors.As(err, &qe))
}

func TestProactiveQuestionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q := &ProactiveQuestion{UserID: "u1", Gap: "success", Question: "What would success look like?", Source: "ai"}
	id, err := s.RecordProactiveQuestion(ctx, q)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.ListProactiveQuestions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Unanswered())
	assert.Equal(t, "ai", got[0].Source)

	require.NoError(t, s.MarkQuestionAnswered(ctx, id, time.Now()))
	got, err = s.ListProactiveQuestions(ctx, "u1", 10)
	require.NoError(t, err)
	assert.False(t, got[0].Unanswered())

	assert.Error(t, s.MarkQuestionAnswered(ctx, id+100, time.Now()))
}

func TestDailyLogUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mood := func(v int) *int { return &v }

	require.NoError(t, s.SaveDailyLog(ctx, &DailyLog{UserID: "u1", Date: "2025-03-01", EveningMood: mood(3)}))
	require.NoError(t, s.SaveDailyLog(ctx, &DailyLog{UserID: "u1", Date: "2025-03-01", EveningMood: mood(7)}))
	require.NoError(t, s.SaveDailyLog(ctx, &DailyLog{UserID: "u1", Date: "2025-03-02"}))

	logs, err := s.ListDailyLogs(ctx, "u1", 14)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2025-03-02", logs[0].Date)
	assert.Nil(t, logs[0].EveningMood)
	require.NotNil(t, logs[1].EveningMood)
	assert.Equal(t, 7, *logs[1].EveningMood)
}

func TestReadsOnMissingTablesAreEmpty(t *testing.T) {
	s := NewStore(openTestDB(t, false), DialectSQLite, zerolog.Nop())
	ctx := context.Background()

	u, err := s.GetUnderstanding(ctx, "u1")
	assert.NoError(t, err)
	assert.Nil(t, u)

	facts, err := s.ListActiveProfileFacts(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, facts)

	insights, err := s.ListActiveInsights(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, insights)

	patterns, err := s.ListBehaviorPatterns(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, patterns)

	questions, err := s.ListProactiveQuestions(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, questions)

	projects, err := s.ListProjects(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, projects)

	milestones, err := s.ListMilestones(ctx, []int64{1, 2}, 8)
	assert.NoError(t, err)
	assert.Empty(t, milestones)

	summaries, err := s.ListConversationSummaries(ctx, "u1", 10)
	assert.NoError(t, err)
	assert.Empty(t, summaries)

	turns, err := s.ListRecentTurns(ctx, "u1", SurfaceChat, 4)
	assert.NoError(t, err)
	assert.Empty(t, turns)

	logs, err := s.ListDailyLogs(ctx, "u1", 14)
	assert.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReadsOnOtherFailuresReturnQueryError(t *testing.T) {
	db := openTestDB(t, true)
	s := NewStore(db, DialectSQLite, zerolog.Nop())
	require.NoError(t, db.Close())

	insights, err := s.ListActiveInsights(context.Background(), "u1", 10)
	require.Error(t, err)
	assert.NotNil(t, insights)
	assert.Empty(t, insights)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "insights", qe.Query)
	assert.False(t, IsMissingRelation(err))

	u, err := s.GetUnderstanding(context.Background(), "u1")
	assert.Nil(t, u)
	assert.True(t, errors.As(err, &qe))
}

func TestIsMissingRelation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite", errors.New("no such table: insights"), true},
		{"postgres text", errors.New(`pq: relation "insights" does not exist`), true},
		{"other", errors.New("database is locked"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMissingRelation(tt.err))
		})
	}
}

const fixtureYAML = `
user_id: acme-founder
understanding:
  core_values: [craft]
facts:
  - category: background
    fact: Former backend engineer
  - category: goals
    fact: Wants a calmer pace
    active: false
insights:
  - type: blocker
    content: Keeps rewriting the onboarding flow instead of shipping
    importance: 8
projects:
  - name: Acme
    status: active
    milestones:
      - title: Private beta
        focus_level: active
      - title: Pricing page
questions:
  - gap: success
    question: What would make Acme a success?
    sent_at: 2025-03-01T09:00:00Z
daily_logs:
  - date: 2025-03-01
    evening_mood: 6
`

func TestLoadAndSeedFixture(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f, err := LoadFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, f))

	facts, err := s.ListActiveProfileFacts(ctx, "acme-founder", 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Former backend engineer", facts[0].Fact)

	projects, err := s.ListProjects(ctx, "acme-founder", 5)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	milestones, err := s.ListMilestones(ctx, []int64{projects[0].ID}, 8)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, FocusActive, milestones[0].FocusLevel)

	questions, err := s.ListProactiveQuestions(ctx, "acme-founder", 10)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.True(t, questions[0].Unanswered())

	logs, err := s.ListDailyLogs(ctx, "acme-founder", 14)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2025-03-01", logs[0].Date)

	_, err = LoadFixture(strings.NewReader("facts: []"))
	assert.Error(t, err)
}
