package gap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/gaps/migrations"
	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleSparseUser(t *testing.T) {
	ds := &fakeDatastore{}
	d := Assemble(context.Background(), ds, "u1", DefaultLimits(), zerolog.Nop())

	assert.Equal(t, "u1", d.UserID)
	assert.Nil(t, d.Understanding)
	assert.NotNil(t, d.Facts)
	assert.NotNil(t, d.Insights)
	assert.NotNil(t, d.Projects)
	assert.NotNil(t, d.Turns)
	assert.Empty(t, d.Projects)
	assert.False(t, ds.called("milestones"), "milestones are skipped without projects")
}

func TestAssembleDegradesFailingSources(t *testing.T) {
	ds := acmeDatastore()
	ds.failing = map[string]bool{"insights": true, "milestones": true, "understanding": true}

	d := Assemble(context.Background(), ds, "u1", DefaultLimits(), zerolog.Nop())
	assert.Empty(t, d.Insights)
	assert.Nil(t, d.Understanding)
	require.Len(t, d.Projects, 1)
	assert.Equal(t, "Acme", d.Projects[0].Name)
	assert.Empty(t, d.Projects[0].Milestones)
	assert.Len(t, d.Facts, 1)
}

func TestAssembleGroupsMilestonesUnderProjects(t *testing.T) {
	ds := &fakeDatastore{
		projects: []store.Project{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		milestones: []store.Milestone{
			{ID: 1, ProjectID: 2, Title: "b1"},
			{ID: 2, ProjectID: 1, Title: "a1"},
			{ID: 3, ProjectID: 2, Title: "b2"},
			{ID: 4, ProjectID: 99, Title: "orphan"},
		},
	}
	d := Assemble(context.Background(), ds, "u1", DefaultLimits(), zerolog.Nop())
	require.Len(t, d.Projects, 2)
	assert.Equal(t, []string{"a1"}, titles(d.Projects[0].Milestones))
	assert.Equal(t, []string{"b1", "b2"}, titles(d.Projects[1].Milestones))
}

func TestAssembleTurnsOnlyWhenSummariesSparse(t *testing.T) {
	turns := map[store.Surface][]store.Turn{
		store.SurfaceChat:  {{Surface: store.SurfaceChat, Content: "chat late", CreatedAt: at(3)}},
		store.SurfaceCoach: {{Surface: store.SurfaceCoach, Content: "coach early", CreatedAt: at(1)}},
	}

	d := Assemble(context.Background(), &fakeDatastore{turns: turns}, "u1", DefaultLimits(), zerolog.Nop())
	require.Len(t, d.Turns, 2)
	assert.Equal(t, "coach early", d.Turns[0].Content, "turns are merged chronologically")

	withSummaries := &fakeDatastore{
		turns: turns,
		summaries: []store.ConversationSummary{
			{ConversationKey: "c1", Summary: "one"},
			{ConversationKey: "c2", Summary: "two"},
		},
	}
	d = Assemble(context.Background(), withSummaries, "u1", DefaultLimits(), zerolog.Nop())
	assert.Empty(t, d.Turns)
	assert.Len(t, d.Summaries, 2)
}

func TestAssembleCapsEveryList(t *testing.T) {
	ds := pathologicalDatastore()
	limits := DefaultLimits()
	d := Assemble(context.Background(), ds, "u1", limits, zerolog.Nop())

	assert.Len(t, d.Facts, limits.Facts)
	assert.Len(t, d.Insights, limits.Insights)
	assert.Len(t, d.Patterns, limits.Patterns)
	assert.Len(t, d.Questions, limits.Questions)
	assert.Len(t, d.Projects, limits.Projects)
	assert.Len(t, d.Summaries, limits.Summaries)
	assert.Len(t, d.DailyLogs, limits.DailyLogs)
	assert.Empty(t, d.Turns)
	for _, p := range d.Projects {
		assert.LessOrEqual(t, len(p.Milestones), limits.MilestonesPerProject)
	}

	sparse := pathologicalDatastore()
	sparse.summaries = nil
	d = Assemble(context.Background(), sparse, "u1", limits, zerolog.Nop())
	assert.Len(t, d.Turns, limits.TurnsPerSurface*len(store.Surfaces))
}

func TestAssembleAgainstStore(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close() //nolint:errcheck // Test cleanup
	require.NoError(t, migrations.RunMigrations(db, zerolog.Nop()))

	s := store.NewStore(db, store.DialectSQLite, zerolog.Nop())
	ctx := context.Background()
	projectID, err := s.AddProject(ctx, &store.Project{UserID: "u1", Name: "Acme", Status: "active"})
	require.NoError(t, err)
	_, err = s.AddMilestone(ctx, &store.Milestone{ProjectID: projectID, Title: "Private beta", FocusLevel: store.FocusActive})
	require.NoError(t, err)
	_, err = s.AddInsight(ctx, &store.Insight{UserID: "u1", Type: store.InsightTypeBlocker, Content: "scope creep", Importance: 6, Active: true})
	require.NoError(t, err)
	_, err = s.AddTurn(ctx, &store.Turn{UserID: "u1", Surface: store.SurfaceCoach, Role: "user", Content: "I keep adding features"})
	require.NoError(t, err)

	d := Assemble(ctx, s, "u1", DefaultLimits(), zerolog.Nop())
	require.Len(t, d.Projects, 1)
	assert.Equal(t, []string{"Private beta"}, titles(d.Projects[0].Milestones))
	assert.Len(t, d.Insights, 1)
	assert.Len(t, d.Turns, 1)
}

func TestAssembleAgainstUnprovisionedStore(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close() //nolint:errcheck // Test cleanup
	_, err = db.Exec(`CREATE TABLE projects (id INTEGER PRIMARY KEY, user_id TEXT, name TEXT, description TEXT, status TEXT, updated_at INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO projects (user_id, name, status, updated_at) VALUES ('u1', 'Acme', 'active', 1)`)
	require.NoError(t, err)

	s := store.NewStore(db, store.DialectSQLite, zerolog.Nop())
	d := Assemble(context.Background(), s, "u1", DefaultLimits(), zerolog.Nop())
	require.Len(t, d.Projects, 1)
	assert.Empty(t, d.Projects[0].Milestones)
	assert.Empty(t, d.Insights)
	assert.Nil(t, d.Understanding)
}

func titles(ms []store.Milestone) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Title)
	}
	return out
}

// pathologicalDatastore holds far more of everything than any cap allows,
// with long free text in every field.
func pathologicalDatastore() *fakeDatastore {
	long := func(prefix string, n int) string {
		return fmt.Sprintf("%s %d ", prefix, n)
	}
	ds := &fakeDatastore{
		understanding: &store.UserUnderstanding{
			UserID:              "u1",
			DefinitionOfSuccess: strings.Repeat("success ", 400),
			CoreValues:          repeatList("value", 200),
			Motivations:         repeatList("motivation", 200),
			Background:          strings.Repeat("background ", 400),
			CurrentSituation:    strings.Repeat("situation ", 400),
			WorkStyle:           strings.Repeat("style ", 400),
		},
		turns: map[store.Surface][]store.Turn{},
	}
	sent := baseTime
	for i := 0; i < 500; i++ {
		ds.facts = append(ds.facts, store.ProfileFact{ID: int64(i), Category: store.CategoryGoals, Fact: strings.Repeat(long("fact", i), 20), Active: true})
		ds.insights = append(ds.insights, store.Insight{ID: int64(i), Type: store.InsightTypeBlocker, Content: strings.Repeat(long("insight", i), 30), Importance: 5, Active: true, CreatedAt: at(i)})
		ds.patterns = append(ds.patterns, store.BehaviorPattern{ID: int64(i), Type: "avoidance", Description: strings.Repeat("pattern ", 50), Confidence: 0.7})
		ds.questions = append(ds.questions, store.ProactiveQuestion{ID: int64(i), Gap: strings.Repeat("gap ", 50), Question: strings.Repeat("question ", 50), SentAt: &sent})
		ds.summaries = append(ds.summaries, store.ConversationSummary{ID: int64(i), ConversationKey: fmt.Sprintf("c%d", i), Summary: strings.Repeat("summary ", 200)})
		ds.logs = append(ds.logs, store.DailyLog{Date: baseTime.AddDate(0, 0, -i).Format(time.DateOnly), EveningMood: intPtr(1 + i%10)})
		for _, surface := range store.Surfaces {
			ds.turns[surface] = append(ds.turns[surface], store.Turn{Surface: surface, Role: "user", Content: strings.Repeat("turn ", 200), CreatedAt: at(i)})
		}
	}
	for i := 0; i < 50; i++ {
		ds.projects = append(ds.projects, store.Project{ID: int64(i + 1), Name: strings.Repeat("project ", 30), Description: strings.Repeat("description ", 100), Status: "active", UpdatedAt: at(i)})
		for j := 0; j < 30; j++ {
			ds.milestones = append(ds.milestones, store.Milestone{ID: int64(i*100 + j), ProjectID: int64(i + 1), Title: strings.Repeat("milestone ", 20), FocusLevel: store.FocusActive})
		}
	}
	return ds
}

func repeatList(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("%s %d", prefix, i))
	}
	return out
}
