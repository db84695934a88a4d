package gap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/samber/lo"
)

// Fallback gap descriptions, one per oracle branch.
const (
	SuccessUndefinedGap = "We don't know what success looks like for this person right now."
	BlockerRootCauseGap = "The root cause behind a recurring blocker is unknown."
	DecisionLogicGap    = "The tradeoff logic behind current priorities is unclear."
)

// closedProjectStatuses are statuses that no longer count as live work.
var closedProjectStatuses = map[string]struct{}{
	"launched":  {},
	"completed": {},
	"archived":  {},
}

// FallbackQuestion derives a gap and question from the digest alone.
func FallbackQuestion(d *Digest) Question {
	if !d.SuccessDefined() {
		if p, ok := liveProject(d); ok {
			return Question{
				Gap: SuccessUndefinedGap,
				Question: fmt.Sprintf("Looking 4 months ahead, what would have to be true about %s for you to call it a real success?",
					snippet(p.Name)),
			}
		}
		return Question{
			Gap:      SuccessUndefinedGap,
			Question: "If the next 4 months went really well, what concrete outcome would tell you it worked?",
		}
	}

	if blocker, ok := latestBlocker(d); ok {
		return Question{
			Gap: BlockerRootCauseGap,
			Question: fmt.Sprintf("You've mentioned %q. When that happens, is the real constraint time, confidence, clarity, or something else?",
				snippet(blocker.Content)),
		}
	}

	if m, ok := activeMilestone(d); ok {
		return Question{
			Gap: DecisionLogicGap,
			Question: fmt.Sprintf("What made %s the thing to focus on right now, and what did you decide to let wait because of it?",
				snippet(m.Title)),
		}
	}
	return Question{
		Gap:      DecisionLogicGap,
		Question: "When two things compete for your time this month, how do you decide which one wins?",
	}
}

// FallbackAnalysis ranks the three oracle gaps. Defining or confirming
// success is always recommended first.
func FallbackAnalysis(d *Digest) Analysis {
	success := Gap{ID: GapOne}
	if d.SuccessDefined() {
		success.Description = "How current work maps to the stated definition of success is unclear."
		success.WhyItMatters = "Without that link, advice can optimise for activity instead of the outcome they actually want."
		success.Confidence = ConfidenceMedium
	} else {
		success.Description = SuccessUndefinedGap
		success.WhyItMatters = "Every recommendation depends on knowing what outcome they are working toward."
		success.Confidence = ConfidenceHigh
	}

	blocker := Gap{ID: GapTwo}
	if in, ok := latestBlocker(d); ok {
		blocker.Description = fmt.Sprintf("%s (%q)", strings.TrimSuffix(BlockerRootCauseGap, "."),
			snippet(in.Content))
		blocker.WhyItMatters = "Addressing the symptom without the cause means the same blocker keeps coming back."
		blocker.Confidence = ConfidenceMedium
	} else {
		blocker.Description = "What tends to get in the way of their progress is unknown."
		blocker.WhyItMatters = "Knowing likely obstacles lets guidance anticipate them instead of reacting."
		blocker.Confidence = ConfidenceLow
	}

	decision := Gap{
		ID:           GapThree,
		Description:  DecisionLogicGap,
		WhyItMatters: "Understanding how they choose between competing work makes prioritisation advice fit their reasoning.",
		Confidence:   ConfidenceLow,
	}
	if m, ok := activeMilestone(d); ok {
		decision.Description = fmt.Sprintf("Why %s is the current focus, and what it displaced, is unclear.", snippet(m.Title))
	}

	reason := "Defining success is the highest-leverage unknown: every other gap is easier to close once the target is clear."
	if d.SuccessDefined() {
		reason = "Confirming how current work serves their definition of success is the highest-leverage unknown."
	}
	return Analysis{
		Gaps:                 []Gap{success, blocker, decision},
		RecommendedGapID:     GapOne,
		RecommendationReason: reason,
	}
}

// snippet bounds a user-supplied name or quote embedded in oracle text.
func snippet(s string) string {
	return truncate(oneLine(s), snippetRunes)
}

// liveProject returns the most recently updated project that is still in
// progress.
func liveProject(d *Digest) (store.Project, bool) {
	live := lo.FilterMap(d.Projects, func(p ProjectDigest, _ int) (store.Project, bool) {
		_, closed := closedProjectStatuses[strings.ToLower(strings.TrimSpace(p.Status))]
		return p.Project, !closed && strings.TrimSpace(p.Name) != ""
	})
	if len(live) == 0 {
		return store.Project{}, false
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].UpdatedAt.After(live[j].UpdatedAt) })
	return live[0], true
}

// latestBlocker returns the most recent active blocker insight.
func latestBlocker(d *Digest) (store.Insight, bool) {
	blockers := lo.Filter(d.Insights, func(in store.Insight, _ int) bool {
		return in.Active && in.Type == store.InsightTypeBlocker && strings.TrimSpace(in.Content) != ""
	})
	if len(blockers) == 0 {
		return store.Insight{}, false
	}
	return lo.MaxBy(blockers, func(a, b store.Insight) bool { return a.CreatedAt.After(b.CreatedAt) }), true
}

// activeMilestone returns the first milestone at the active focus level,
// walking projects in digest order.
func activeMilestone(d *Digest) (store.Milestone, bool) {
	for _, p := range d.Projects {
		for _, m := range p.Milestones {
			if m.FocusLevel == store.FocusActive && strings.TrimSpace(m.Title) != "" {
				return m, true
			}
		}
	}
	return store.Milestone{}, false
}
