package gap

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// GapID identifies one of the three ranked gaps in an analysis.
type GapID int

const (
	GapOne   GapID = 1
	GapTwo   GapID = 2
	GapThree GapID = 3
)

// Valid reports whether id is one of the three known gap ids.
func (id GapID) Valid() bool {
	return id >= GapOne && id <= GapThree
}

// Confidence is the model's (or the oracle's) confidence tier for a gap.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CoerceConfidence maps free text onto a confidence tier. Anything
// unrecognised is medium.
func CoerceConfidence(s string) Confidence {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "high"):
		return ConfidenceHigh
	case strings.HasPrefix(s, "low"):
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// ParseResult is the outcome of one parsing strategy. Value is meaningful
// only when Valid is true.
type ParseResult[T any] struct {
	Valid bool
	Value T
}

func valid[T any](v T) ParseResult[T] {
	return ParseResult[T]{Valid: true, Value: v}
}

// Question is a single gap and the question that would close it.
type Question struct {
	Gap      string `json:"gap"`
	Question string `json:"question"`
}

// Gap is one ranked candidate in an analysis.
type Gap struct {
	ID           GapID      `json:"id"`
	Description  string     `json:"description"`
	WhyItMatters string     `json:"why_it_matters"`
	Confidence   Confidence `json:"confidence"`
}

// Analysis is a ranked list of up to three gaps and the one to ask first.
type Analysis struct {
	Gaps                 []Gap  `json:"gaps"`
	RecommendedGapID     GapID  `json:"recommended_gap_id"`
	RecommendationReason string `json:"recommendation_reason"`
}

// ParseQuestion tries the embedded JSON object first, then labeled lines.
func ParseQuestion(text string) ParseResult[Question] {
	if r := parseQuestionJSON(text); r.Valid {
		return r
	}
	return parseQuestionLabeled(text)
}

// ParseAnalysis tries the embedded JSON object first, then labeled blocks.
func ParseAnalysis(text string) ParseResult[Analysis] {
	if r := parseAnalysisJSON(text); r.Valid {
		return r
	}
	return parseAnalysisLabeled(text)
}

// jsonObject returns the substring from the first '{' to the last '}'.
func jsonObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func parseQuestionJSON(text string) ParseResult[Question] {
	obj, ok := jsonObject(text)
	if !ok {
		return ParseResult[Question]{}
	}
	var raw struct {
		Gap      any `json:"gap"`
		Question any `json:"question"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ParseResult[Question]{}
	}
	return checkQuestion(Question{Gap: stringField(raw.Gap), Question: stringField(raw.Question)})
}

var (
	gapLineRe      = regexp.MustCompile(`(?im)^[ \t*#>-]*GAP[ \t*]*:[ \t*]*(.+)$`)
	questionLineRe = regexp.MustCompile(`(?im)^[ \t*#>-]*QUESTION[ \t*]*:[ \t*]*(.+)$`)
)

func parseQuestionLabeled(text string) ParseResult[Question] {
	gapMatch := gapLineRe.FindStringSubmatch(text)
	questionMatch := questionLineRe.FindStringSubmatch(text)
	if gapMatch == nil || questionMatch == nil {
		return ParseResult[Question]{}
	}
	return checkQuestion(Question{Gap: cleanValue(gapMatch[1]), Question: cleanValue(questionMatch[1])})
}

func checkQuestion(q Question) ParseResult[Question] {
	q.Gap = strings.TrimSpace(q.Gap)
	q.Question = strings.TrimSpace(q.Question)
	if q.Gap == "" || q.Question == "" {
		return ParseResult[Question]{}
	}
	return valid(q)
}

func parseAnalysisJSON(text string) ParseResult[Analysis] {
	obj, ok := jsonObject(text)
	if !ok {
		return ParseResult[Analysis]{}
	}
	var raw struct {
		Gaps []struct {
			ID           any `json:"id"`
			Description  any `json:"description"`
			WhyItMatters any `json:"why_it_matters"`
			Why          any `json:"why"`
			Confidence   any `json:"confidence"`
		} `json:"gaps"`
		RecommendedGapID     any `json:"recommended_gap_id"`
		RecommendationReason any `json:"recommendation_reason"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ParseResult[Analysis]{}
	}

	a := Analysis{
		RecommendedGapID:     GapID(intField(raw.RecommendedGapID)),
		RecommendationReason: stringField(raw.RecommendationReason),
	}
	for _, g := range raw.Gaps {
		why := stringField(g.WhyItMatters)
		if why == "" {
			why = stringField(g.Why)
		}
		a.Gaps = append(a.Gaps, Gap{
			ID:           GapID(intField(g.ID)),
			Description:  stringField(g.Description),
			WhyItMatters: why,
			Confidence:   CoerceConfidence(stringField(g.Confidence)),
		})
	}
	return checkAnalysis(a)
}

var (
	numberedGapRe  = regexp.MustCompile(`(?i)^[ \t*#>-]*GAP[ \t*]*([0-9]+)[ \t*]*[:.)][ \t*]*(.*)$`)
	whyRe          = regexp.MustCompile(`(?i)^[ \t*#>-]*WHY(?:[ \t_]+IT[ \t_]+MATTERS)?[ \t*]*:[ \t*]*(.*)$`)
	confidenceRe   = regexp.MustCompile(`(?i)^[ \t*#>-]*CONFIDENCE[ \t*]*:[ \t*]*(.*)$`)
	recommendedRe  = regexp.MustCompile(`(?i)^[ \t*#>-]*RECOMMENDED(?:[ \t_]+GAP)?[ \t*]*:[ \t*]*(.*)$`)
	reasonRe       = regexp.MustCompile(`(?i)^[ \t*#>-]*REASON[ \t*]*:[ \t*]*(.*)$`)
	leadingDigitRe = regexp.MustCompile(`[0-9]+`)
)

func parseAnalysisLabeled(text string) ParseResult[Analysis] {
	var (
		a       Analysis
		current *Gap
	)
	for _, line := range strings.Split(text, "\n") {
		if m := numberedGapRe.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1]) //nolint:errcheck // Regex guarantees digits
			a.Gaps = append(a.Gaps, Gap{ID: GapID(id), Description: cleanValue(m[2]), Confidence: ConfidenceMedium})
			current = &a.Gaps[len(a.Gaps)-1]
			continue
		}
		if m := whyRe.FindStringSubmatch(line); m != nil && current != nil {
			current.WhyItMatters = cleanValue(m[1])
			continue
		}
		if m := confidenceRe.FindStringSubmatch(line); m != nil && current != nil {
			current.Confidence = CoerceConfidence(cleanValue(m[1]))
			continue
		}
		if m := recommendedRe.FindStringSubmatch(line); m != nil {
			if digits := leadingDigitRe.FindString(m[1]); digits != "" {
				id, _ := strconv.Atoi(digits) //nolint:errcheck // Regex guarantees digits
				a.RecommendedGapID = GapID(id)
			}
			current = nil
			continue
		}
		if m := reasonRe.FindStringSubmatch(line); m != nil {
			a.RecommendationReason = cleanValue(m[1])
			current = nil
		}
	}
	return checkAnalysis(a)
}

// checkAnalysis keeps at most three complete gaps, repairs their ids and the
// recommendation, and rejects the analysis if nothing usable remains.
func checkAnalysis(a Analysis) ParseResult[Analysis] {
	var gaps []Gap
	for _, g := range a.Gaps {
		g.Description = strings.TrimSpace(g.Description)
		g.WhyItMatters = strings.TrimSpace(g.WhyItMatters)
		if g.Description == "" || g.WhyItMatters == "" {
			continue
		}
		if g.Confidence == "" {
			g.Confidence = ConfidenceMedium
		}
		gaps = append(gaps, g)
		if len(gaps) == int(GapThree) {
			break
		}
	}
	a.RecommendationReason = strings.TrimSpace(a.RecommendationReason)
	if len(gaps) == 0 || a.RecommendationReason == "" {
		return ParseResult[Analysis]{}
	}

	recommended := -1
	for i, g := range gaps {
		if g.ID == a.RecommendedGapID {
			recommended = i
			break
		}
	}

	seen := map[GapID]bool{}
	for _, g := range gaps {
		if !g.ID.Valid() || seen[g.ID] {
			for i := range gaps {
				gaps[i].ID = GapID(i + 1)
			}
			break
		}
		seen[g.ID] = true
	}
	a.Gaps = gaps

	if recommended < 0 {
		recommended = 0
	}
	a.RecommendedGapID = gaps[recommended].ID
	return valid(a)
}

// cleanValue trims whitespace, markdown emphasis and wrapping quotes.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_`")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func intField(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(leadingDigitRe.FindString(t))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
