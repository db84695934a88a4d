package store

import "time"

// Surface names one of the independent conversation surfaces a user talks to.
type Surface string

const (
	SurfaceChat  Surface = "chat"
	SurfaceCoach Surface = "coach"
)

// Surfaces lists every conversation surface, in sampling order.
var Surfaces = []Surface{SurfaceChat, SurfaceCoach}

// Profile fact categories.
const (
	CategoryBackground  = "background"
	CategorySkills      = "skills"
	CategorySituation   = "situation"
	CategoryGoals       = "goals"
	CategoryPreferences = "preferences"
	CategoryConstraints = "constraints"
)

// InsightTypeBlocker marks insights describing something that keeps getting in the user's way.
const InsightTypeBlocker = "blocker"

// Milestone focus levels.
const (
	FocusActive  = "active"
	FocusNext    = "next"
	FocusBacklog = "backlog"
)

// UserUnderstanding is the structured belief-state about one user.
// At most one row exists per user; its absence is meaningful.
type UserUnderstanding struct {
	UserID              string    `json:"user_id" yaml:"-"`
	DefinitionOfSuccess string    `json:"definition_of_success,omitempty" yaml:"definition_of_success"`
	CoreValues          []string  `json:"core_values,omitempty" yaml:"core_values"`
	Motivations         []string  `json:"motivations,omitempty" yaml:"motivations"`
	Strengths           []string  `json:"strengths,omitempty" yaml:"strengths"`
	Blockers            []string  `json:"blockers,omitempty" yaml:"blockers"`
	OpenQuestions       []string  `json:"open_questions,omitempty" yaml:"open_questions"`
	Background          string    `json:"background,omitempty" yaml:"background"`
	CurrentSituation    string    `json:"current_situation,omitempty" yaml:"current_situation"`
	WorkStyle           string    `json:"work_style,omitempty" yaml:"work_style"`
	UpdatedAt           time.Time `json:"updated_at" yaml:"updated_at"`
}

// ProfileFact is one atomic, categorized fact about a user.
type ProfileFact struct {
	ID        int64     `json:"id" yaml:"-"`
	UserID    string    `json:"user_id" yaml:"-"`
	Category  string    `json:"category" yaml:"category"`
	Fact      string    `json:"fact" yaml:"fact"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Insight is one discovered observation about a user.
type Insight struct {
	ID         int64     `json:"id" yaml:"-"`
	UserID     string    `json:"user_id" yaml:"-"`
	Type       string    `json:"type" yaml:"type"`
	Content    string    `json:"content" yaml:"content"`
	Importance int       `json:"importance" yaml:"importance"` // 1-10
	Active     bool      `json:"active" yaml:"active"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Project is a unit of work the user is pursuing.
type Project struct {
	ID          int64     `json:"id" yaml:"-"`
	UserID      string    `json:"user_id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Status      string    `json:"status" yaml:"status"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// Milestone breaks a project down.
type Milestone struct {
	ID         int64     `json:"id" yaml:"-"`
	ProjectID  int64     `json:"project_id" yaml:"-"`
	Title      string    `json:"title" yaml:"title"`
	Status     string    `json:"status" yaml:"status"`
	FocusLevel string    `json:"focus_level" yaml:"focus_level"` // active, next, backlog
	SortOrder  int       `json:"sort_order" yaml:"sort_order"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// ConversationSummary is the condensed record of one conversation thread.
type ConversationSummary struct {
	ID              int64     `json:"id" yaml:"-"`
	UserID          string    `json:"user_id" yaml:"-"`
	ConversationKey string    `json:"conversation_key" yaml:"conversation_key"`
	Summary         string    `json:"summary" yaml:"summary"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

// Turn is a single raw message from one conversation surface.
type Turn struct {
	ID        int64     `json:"id" yaml:"-"`
	UserID    string    `json:"user_id" yaml:"-"`
	Surface   Surface   `json:"surface" yaml:"surface"`
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// BehaviorPattern is a recurring behavior detected elsewhere.
type BehaviorPattern struct {
	ID              int64      `json:"id" yaml:"-"`
	UserID          string     `json:"user_id" yaml:"-"`
	Type            string     `json:"type" yaml:"type"`
	Description     string     `json:"description" yaml:"description"`
	Confidence      float64    `json:"confidence" yaml:"confidence"` // 0-1
	LastConfirmedAt *time.Time `json:"last_confirmed_at,omitempty" yaml:"last_confirmed_at"`
}

// ProactiveQuestion is a previously asked gap-closing question.
type ProactiveQuestion struct {
	ID           int64      `json:"id" yaml:"-"`
	UserID       string     `json:"user_id" yaml:"-"`
	Gap          string     `json:"gap" yaml:"gap"`
	Question     string     `json:"question" yaml:"question"`
	Source       string     `json:"source" yaml:"source"`
	SentAt       *time.Time `json:"sent_at,omitempty" yaml:"sent_at"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty" yaml:"answered_at"`
	QualityScore *float64   `json:"quality_score,omitempty" yaml:"quality_score"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
}

// Unanswered reports whether the question was sent but never answered.
func (q ProactiveQuestion) Unanswered() bool {
	return q.SentAt != nil && q.AnsweredAt == nil
}

// DailyLog is one day's mood/energy record. Values are on a 1-10 scale.
type DailyLog struct {
	ID            int64  `json:"id" yaml:"-"`
	UserID        string `json:"user_id" yaml:"-"`
	Date          string `json:"date" yaml:"date"` // YYYY-MM-DD
	MorningMood   *int   `json:"morning_mood,omitempty" yaml:"morning_mood"`
	EveningMood   *int   `json:"evening_mood,omitempty" yaml:"evening_mood"`
	MorningEnergy *int   `json:"morning_energy,omitempty" yaml:"morning_energy"`
	EveningEnergy *int   `json:"evening_energy,omitempty" yaml:"evening_energy"`
}
