package gap

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/samber/lo"
)

// SparseSignal is the only signal emitted when nothing else fires.
const SparseSignal = "Patterns are still sparse; not enough history to detect trends."

const (
	snippetRunes  = 80
	moodWindow    = 3
	minMoodPoints = 4
	moodDelta     = 1.0
	minTopicRunes = 5
	minTopicCount = 3
	maxTopics     = 3
)

// MoodTrend classifies recent evening mood against older evening mood.
type MoodTrend string

const (
	MoodImproving MoodTrend = "improving"
	MoodDeclining MoodTrend = "declining"
	MoodStable    MoodTrend = "stable"
)

var stopWords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {}, "being": {}, "below": {},
	"between": {}, "could": {}, "doing": {}, "during": {}, "every": {}, "further": {}, "having": {},
	"other": {}, "really": {}, "should": {}, "still": {}, "their": {}, "theirs": {}, "there": {},
	"these": {}, "thing": {}, "things": {}, "those": {}, "through": {}, "under": {}, "until": {},
	"where": {}, "which": {}, "while": {}, "would": {}, "yourself": {}, "themselves": {},
	"because": {}, "before": {}, "seems": {}, "user": {}, "users": {}, "wants": {}, "often": {},
}

// MinePatterns derives short qualitative signals from the digest. The result
// is never empty and holds at most limit lines.
func MinePatterns(d *Digest, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimits().Signals
	}

	var signals []string
	if line, ok := recurringBlocker(d.Insights); ok {
		signals = append(signals, line)
	}
	if n := lo.CountBy(d.Questions, func(q store.ProactiveQuestion) bool { return q.Unanswered() }); n > 0 {
		noun := "questions"
		if n == 1 {
			noun = "question"
		}
		signals = append(signals, fmt.Sprintf("%d proactive %s sent but never answered.", n, noun))
	}
	if trend, ok := EveningMoodTrend(d.DailyLogs); ok {
		signals = append(signals, fmt.Sprintf("Evening mood trend over recent logs: %s.", trend))
	}
	if topics := RecurringTopics(d.Insights); len(topics) > 0 {
		signals = append(signals, "Recurring topics in insights: "+strings.Join(topics, ", ")+".")
	}

	if len(signals) == 0 {
		return []string{SparseSignal}
	}
	return lo.Slice(signals, 0, limit)
}

// recurringBlocker names the two most recent blocker insights when at least
// two exist.
func recurringBlocker(insights []store.Insight) (string, bool) {
	blockers := lo.Filter(insights, func(in store.Insight, _ int) bool {
		return in.Active && in.Type == store.InsightTypeBlocker
	})
	if len(blockers) < 2 {
		return "", false
	}
	sort.SliceStable(blockers, func(i, j int) bool {
		return blockers[i].CreatedAt.After(blockers[j].CreatedAt)
	})
	return fmt.Sprintf("Recurring blocker: %q and %q.",
		snippet(blockers[0].Content),
		snippet(blockers[1].Content)), true
}

// EveningMoodTrend compares the mean of the three most recent evening moods
// with the mean of the three oldest. logs are newest first. Exactly equal
// means, and deltas under one point either way, are stable.
func EveningMoodTrend(logs []store.DailyLog) (MoodTrend, bool) {
	var moods []float64 // newest first
	for _, l := range logs {
		if l.EveningMood != nil {
			moods = append(moods, float64(*l.EveningMood))
		}
	}
	if len(moods) < minMoodPoints {
		return "", false
	}

	recent := lo.Mean(moods[:moodWindow])
	oldest := lo.Mean(moods[len(moods)-moodWindow:])
	switch delta := recent - oldest; {
	case delta >= moodDelta:
		return MoodImproving, true
	case delta <= -moodDelta:
		return MoodDeclining, true
	default:
		return MoodStable, true
	}
}

// RecurringTopics returns up to three words of five or more letters that
// appear at least three times across insight content. Higher counts come
// first; equal counts keep first-seen order.
func RecurringTopics(insights []store.Insight) []string {
	counts := map[string]int{}
	var order []string
	for _, in := range insights {
		for _, word := range tokenize(in.Content) {
			if _, stop := stopWords[word]; stop || utf8.RuneCountInString(word) < minTopicRunes {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	topics := lo.Filter(order, func(w string, _ int) bool { return counts[w] >= minTopicCount })
	sort.SliceStable(topics, func(i, j int) bool { return counts[topics[i]] > counts[topics[j]] })
	return lo.Slice(topics, 0, maxTopics)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
