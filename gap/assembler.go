package gap

import (
	"context"
	"sort"

	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Assemble gathers everything recorded about userID into a capped Digest.
// Independent reads run concurrently; a source that fails degrades to its
// empty default and is logged. Assemble never fails as a whole.
func Assemble(ctx context.Context, ds Datastore, userID string, limits Limits, logger zerolog.Logger) *Digest {
	limits = limits.WithDefaults()
	logger = logger.With().Str("component", "assembler").Str("user_id", userID).Logger()

	d := &Digest{UserID: userID}
	var (
		projects []store.Project
		turns    = make([][]store.Turn, len(store.Surfaces))
	)

	degrade := func(source string, err error) {
		if err != nil {
			logger.Warn().Err(err).Str("source", source).Msg("Source unavailable; using empty default")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := ds.GetUnderstanding(gctx, userID)
		degrade("understanding", err)
		d.Understanding = u
		return nil
	})
	g.Go(func() error {
		facts, err := ds.ListActiveProfileFacts(gctx, userID, limits.Facts)
		degrade("profile_facts", err)
		d.Facts = lo.Filter(facts, func(f store.ProfileFact, _ int) bool { return f.Active })
		return nil
	})
	g.Go(func() error {
		insights, err := ds.ListActiveInsights(gctx, userID, limits.Insights)
		degrade("insights", err)
		d.Insights = lo.Filter(insights, func(in store.Insight, _ int) bool { return in.Active })
		return nil
	})
	g.Go(func() error {
		patterns, err := ds.ListBehaviorPatterns(gctx, userID, limits.Patterns)
		degrade("behavior_patterns", err)
		d.Patterns = patterns
		return nil
	})
	g.Go(func() error {
		questions, err := ds.ListProactiveQuestions(gctx, userID, limits.Questions)
		degrade("proactive_questions", err)
		d.Questions = questions
		return nil
	})
	g.Go(func() error {
		var err error
		projects, err = ds.ListProjects(gctx, userID, limits.Projects)
		degrade("projects", err)
		return nil
	})
	g.Go(func() error {
		summaries, err := ds.ListConversationSummaries(gctx, userID, limits.Summaries)
		degrade("conversation_summaries", err)
		d.Summaries = summaries
		return nil
	})
	g.Go(func() error {
		logs, err := ds.ListDailyLogs(gctx, userID, limits.DailyLogs)
		degrade("daily_logs", err)
		d.DailyLogs = logs
		return nil
	})
	// Turns are read alongside summaries and dropped below when enough
	// summaries exist; the sample is small and bounded per surface.
	for i, surface := range store.Surfaces {
		g.Go(func() error {
			sample, err := ds.ListRecentTurns(gctx, userID, surface, limits.TurnsPerSurface)
			degrade(string(surface)+"_turns", err)
			turns[i] = lo.Slice(sample, 0, limits.TurnsPerSurface)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Every read absorbs its own error

	projects = lo.Slice(projects, 0, limits.Projects)
	d.Projects = withMilestones(ctx, ds, projects, limits.MilestonesPerProject, degrade)

	d.Facts = capList(d.Facts, limits.Facts)
	d.Insights = capList(d.Insights, limits.Insights)
	d.Patterns = capList(d.Patterns, limits.Patterns)
	d.Questions = capList(d.Questions, limits.Questions)
	d.Summaries = capList(d.Summaries, limits.Summaries)
	d.DailyLogs = capList(d.DailyLogs, limits.DailyLogs)

	d.Turns = []store.Turn{}
	if len(d.Summaries) < minSummaries {
		d.Turns = lo.Flatten(turns)
		sort.SliceStable(d.Turns, func(i, j int) bool {
			return d.Turns[i].CreatedAt.Before(d.Turns[j].CreatedAt)
		})
	}

	logger.Debug().
		Bool("understanding", d.Understanding != nil).
		Int("facts", len(d.Facts)).
		Int("insights", len(d.Insights)).
		Int("projects", len(d.Projects)).
		Int("summaries", len(d.Summaries)).
		Int("turns", len(d.Turns)).
		Int("daily_logs", len(d.DailyLogs)).
		Msg("Digest assembled")
	return d
}

// withMilestones runs the one dependent read: milestones for the fetched
// projects, grouped under their project and capped per project.
func withMilestones(ctx context.Context, ds Datastore, projects []store.Project, perProject int, degrade func(string, error)) []ProjectDigest {
	out := make([]ProjectDigest, 0, len(projects))
	if len(projects) == 0 {
		return out
	}

	ids := lo.Map(projects, func(p store.Project, _ int) int64 { return p.ID })
	milestones, err := ds.ListMilestones(ctx, ids, perProject)
	degrade("milestones", err)
	byProject := lo.GroupBy(milestones, func(m store.Milestone) int64 { return m.ProjectID })

	for _, p := range projects {
		out = append(out, ProjectDigest{
			Project:    p,
			Milestones: capList(byProject[p.ID], perProject),
		})
	}
	return out
}

// capList trims items to at most limit entries and never returns nil.
func capList[T any](items []T, limit int) []T {
	if items == nil {
		return []T{}
	}
	return lo.Slice(items, 0, limit)
}
