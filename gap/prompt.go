package gap

import (
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/gaps/store"
)

const noneRecorded = "None recorded."

// Sections holds each formatted digest block, already cut to its ceiling.
type Sections struct {
	Understanding string
	Facts         string
	Insights      string
	Projects      string
	Conversations string
	Patterns      string
	Signals       string
	Questions     string
}

// FormatDigest renders every digest block as text and truncates each block
// to its character ceiling.
func FormatDigest(d *Digest, signals []string, limits Limits) Sections {
	limits = limits.WithDefaults()
	return Sections{
		Understanding: truncate(formatUnderstanding(d.Understanding), limits.UnderstandingChars),
		Facts:         truncate(formatFacts(d.Facts), limits.FactsChars),
		Insights:      truncate(formatInsights(d.Insights, limits.InsightLineChars), limits.InsightsChars),
		Projects:      truncate(formatProjects(d.Projects), limits.ProjectsChars),
		Conversations: truncate(formatConversations(d, limits), limits.ConversationsChars),
		Patterns:      truncate(formatPatterns(d.Patterns), limits.PatternsChars),
		Signals:       truncate(bulletList(signals), limits.SignalsChars),
		Questions:     truncate(formatQuestions(d.Questions), limits.QuestionsChars),
	}
}

func formatUnderstanding(u *store.UserUnderstanding) string {
	if u == nil {
		return "No structured understanding recorded yet."
	}
	var b strings.Builder
	field := func(label, value string) {
		value = oneLine(value)
		if value == "" {
			value = "(not recorded)"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}
	list := func(label string, items []string) {
		field(label, strings.Join(items, "; "))
	}
	field("Definition of success", u.DefinitionOfSuccess)
	list("Core values", u.CoreValues)
	list("Motivations", u.Motivations)
	list("Strengths", u.Strengths)
	list("Blockers", u.Blockers)
	list("Open questions", u.OpenQuestions)
	field("Background", u.Background)
	field("Current situation", u.CurrentSituation)
	field("Work style", u.WorkStyle)
	return strings.TrimRight(b.String(), "\n")
}

func formatFacts(facts []store.ProfileFact) string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("[%s] %s", f.Category, oneLine(f.Fact)))
	}
	return bulletList(lines)
}

func formatInsights(insights []store.Insight, lineChars int) string {
	lines := make([]string, 0, len(insights))
	for _, in := range insights {
		line := fmt.Sprintf("[%s, importance %d] %s", in.Type, in.Importance, oneLine(in.Content))
		lines = append(lines, truncate(line, lineChars))
	}
	return bulletList(lines)
}

func formatProjects(projects []ProjectDigest) string {
	if len(projects) == 0 {
		return noneRecorded
	}
	var b strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&b, "- %s (%s)", oneLine(p.Name), p.Status)
		if desc := oneLine(p.Description); desc != "" {
			fmt.Fprintf(&b, ": %s", desc)
		}
		b.WriteByte('\n')
		for _, m := range p.Milestones {
			fmt.Fprintf(&b, "  * [%s] %s (%s)\n", m.FocusLevel, oneLine(m.Title), m.Status)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatConversations prefers summaries and falls back to the raw turn sample.
func formatConversations(d *Digest, limits Limits) string {
	if len(d.Summaries) > 0 {
		lines := make([]string, 0, len(d.Summaries))
		for _, s := range d.Summaries {
			lines = append(lines, fmt.Sprintf("%s: %s", s.ConversationKey, truncate(oneLine(s.Summary), limits.SummaryChars)))
		}
		if len(d.Turns) == 0 {
			return bulletList(lines)
		}
		return bulletList(lines) + "\n" + formatTurns(d.Turns, limits.TurnChars)
	}
	return formatTurns(d.Turns, limits.TurnChars)
}

func formatTurns(turns []store.Turn, turnChars int) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("[%s/%s] %s", t.Surface, t.Role, truncate(oneLine(t.Content), turnChars)))
	}
	return bulletList(lines)
}

func formatPatterns(patterns []store.BehaviorPattern) string {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		lines = append(lines, fmt.Sprintf("%s (confidence %.2f): %s", p.Type, p.Confidence, oneLine(p.Description)))
	}
	return bulletList(lines)
}

func formatQuestions(questions []store.ProactiveQuestion) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		state := "not sent"
		switch {
		case q.AnsweredAt != nil:
			state = "answered"
		case q.SentAt != nil:
			state = "unanswered"
		}
		lines = append(lines, fmt.Sprintf("[%s] gap: %s | asked: %s", state, oneLine(q.Gap), oneLine(q.Question)))
	}
	return bulletList(lines)
}

func bulletList(lines []string) string {
	if len(lines) == 0 {
		return noneRecorded
	}
	return "- " + strings.Join(lines, "\n- ")
}

func (s Sections) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{{understanding}}", s.Understanding,
		"{{facts}}", s.Facts,
		"{{insights}}", s.Insights,
		"{{projects}}", s.Projects,
		"{{conversations}}", s.Conversations,
		"{{patterns}}", s.Patterns,
		"{{signals}}", s.Signals,
		"{{questions}}", s.Questions,
	)
}

// Prompt is a rendered completion prompt. System carries the fixed
// instructions; User carries the rendered digest.
type Prompt struct {
	System string
	User   string
}

// BuildQuestionPrompt renders the single-question prompt.
func BuildQuestionPrompt(s Sections) Prompt {
	return Prompt{System: questionInstructions, User: s.replacer().Replace(digestTemplate)}
}

// BuildAnalysisPrompt renders the ranked three-gap analysis prompt.
func BuildAnalysisPrompt(s Sections) Prompt {
	return Prompt{System: analysisInstructions, User: s.replacer().Replace(digestTemplate)}
}

const digestTemplate = `## What we understand about this person
{{understanding}}

## Profile facts
{{facts}}

## Insights
{{insights}}

## Projects and milestones
{{projects}}

## Recent conversations
{{conversations}}

## Known behavior patterns
{{patterns}}

## Mined signals
{{signals}}

## Questions already asked
{{questions}}
`

const questionInstructions = `You are reviewing everything an assistant knows about one person, given in the user message. Your job is to find the ONE most valuable piece of missing information: the gap that, once closed, would most improve the guidance this person receives.

Rules for the question:
1. It must reference something concrete we already know (a project, a goal, a blocker, a pattern). Never ask a generic question.
2. Phrase it the way a highly attentive mentor who has followed their work closely would ask it.
3. Keep it to two sentences at most.
4. It must provoke reflection. It cannot be answerable with yes or no.
5. Do not repeat a question that was already asked.

Answer in exactly this format:
GAP: <one sentence describing what we don't know>
QUESTION: <the question to ask>

Then, on its own line, repeat the same answer as a single-line JSON object:
{"gap": "<same gap>", "question": "<same question>"}
`

const analysisInstructions = `You are auditing what an assistant knows about one person, given in the user message. Identify the top 3 knowledge gaps that limit the quality of the guidance they receive.

Check for each of these gap categories:
1. Contradiction between what they say and what they do.
2. Vague or unstated goals.
3. Unstated motivation behind their current work.
4. Topics they conspicuously avoid.
5. Stale information that has likely changed.
6. Missing life context needed to give good advice.

Rank the gaps by (how much closing it would improve guidance) x (how likely they are to answer). For each gap give a description, why it matters, and a confidence of high, medium, or low. Then recommend the single gap to ask about first.

Answer in exactly this format:
GAP 1: <description>
WHY: <why it matters>
CONFIDENCE: <high|medium|low>
GAP 2: <description>
WHY: <why it matters>
CONFIDENCE: <high|medium|low>
GAP 3: <description>
WHY: <why it matters>
CONFIDENCE: <high|medium|low>
RECOMMENDED: <1, 2, or 3>
REASON: <why that gap first>

Then repeat the same answer as one JSON object:
{"gaps": [{"id": 1, "description": "", "why_it_matters": "", "confidence": "high"}], "recommended_gap_id": 1, "recommendation_reason": ""}
`
