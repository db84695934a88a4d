package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// insert runs an INSERT and returns the new row's id. PostgreSQL has no
// LastInsertId, so the id comes back through RETURNING there.
func (s *Store) insert(ctx context.Context, query sq.InsertBuilder) (int64, error) {
	if s.dialect == DialectPostgres {
		queryStr, args, err := query.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("build query: %w", err)
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, queryStr, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	queryStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	result, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) exec(ctx context.Context, query sq.Sqlizer) (int64, error) {
	queryStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	result, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SaveUnderstanding inserts or replaces the user's belief-state row.
func (s *Store) SaveUnderstanding(ctx context.Context, u *UserUnderstanding) error {
	s.logger.Debug().Str("method", "SaveUnderstanding").Str("user_id", u.UserID).Msg("called")
	query := s.builder.
		Insert("user_understanding").
		Columns("user_id", "definition_of_success", "core_values", "motivations", "strengths",
			"blockers", "open_questions", "background", "current_situation", "work_style", "updated_at").
		Values(u.UserID, u.DefinitionOfSuccess, encodeList(u.CoreValues), encodeList(u.Motivations),
			encodeList(u.Strengths), encodeList(u.Blockers), encodeList(u.OpenQuestions),
			u.Background, u.CurrentSituation, u.WorkStyle, unixOrNow(u.UpdatedAt)).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			definition_of_success = excluded.definition_of_success,
			core_values = excluded.core_values,
			motivations = excluded.motivations,
			strengths = excluded.strengths,
			blockers = excluded.blockers,
			open_questions = excluded.open_questions,
			background = excluded.background,
			current_situation = excluded.current_situation,
			work_style = excluded.work_style,
			updated_at = excluded.updated_at`)
	if _, err := s.exec(ctx, query); err != nil {
		return fmt.Errorf("save understanding: %w", err)
	}
	return nil
}

// AddProfileFact stores a profile fact and returns its id.
func (s *Store) AddProfileFact(ctx context.Context, f *ProfileFact) (int64, error) {
	s.logger.Debug().Str("method", "AddProfileFact").Str("user_id", f.UserID).Str("category", f.Category).Msg("called")
	id, err := s.insert(ctx, s.builder.
		Insert("profile_facts").
		Columns("user_id", "category", "fact", "is_active", "created_at").
		Values(f.UserID, f.Category, f.Fact, f.Active, unixOrNow(f.CreatedAt)))
	if err != nil {
		return 0, fmt.Errorf("add profile fact: %w", err)
	}
	f.ID = id
	return id, nil
}

// AddInsight stores an insight and returns its id.
func (s *Store) AddInsight(ctx context.Context, in *Insight) (int64, error) {
	s.logger.Debug().Str("method", "AddInsight").Str("user_id", in.UserID).Str("type", in.Type).Msg("called")
	id, err := s.insert(ctx, s.builder.
		Insert("insights").
		Columns("user_id", "insight_type", "content", "importance", "is_active", "created_at").
		Values(in.UserID, in.Type, in.Content, in.Importance, in.Active, unixOrNow(in.CreatedAt)))
	if err != nil {
		return 0, fmt.Errorf("add insight: %w", err)
	}
	in.ID = id
	return id, nil
}

// AddProject stores a project and returns its id.
func (s *Store) AddProject(ctx context.Context, p *Project) (int64, error) {
	s.logger.Debug().Str("method", "AddProject").Str("user_id", p.UserID).Str("name", p.Name).Msg("called")
	status := p.Status
	if status == "" {
		status = "active"
	}
	id, err := s.insert(ctx, s.builder.
		Insert("projects").
		Columns("user_id", "name", "description", "status", "updated_at").
		Values(p.UserID, p.Name, p.Description, status, unixOrNow(p.UpdatedAt)))
	if err != nil {
		return 0, fmt.Errorf("add project: %w", err)
	}
	p.ID = id
	p.Status = status
	return id, nil
}

// AddMilestone stores a milestone under its project and returns its id.
func (s *Store) AddMilestone(ctx context.Context, m *Milestone) (int64, error) {
	s.logger.Debug().Str("method", "AddMilestone").Int64("project_id", m.ProjectID).Str("title", m.Title).Msg("called")
	status := m.Status
	if status == "" {
		status = "pending"
	}
	focus := m.FocusLevel
	if focus == "" {
		focus = FocusBacklog
	}
	id, err := s.insert(ctx, s.builder.
		Insert("milestones").
		Columns("project_id", "title", "status", "focus_level", "sort_order", "updated_at").
		Values(m.ProjectID, m.Title, status, focus, m.SortOrder, unixOrNow(m.UpdatedAt)))
	if err != nil {
		return 0, fmt.Errorf("add milestone: %w", err)
	}
	m.ID = id
	m.Status = status
	m.FocusLevel = focus
	return id, nil
}

// AddConversationSummary stores a conversation summary and returns its id.
func (s *Store) AddConversationSummary(ctx context.Context, cs *ConversationSummary) (int64, error) {
	s.logger.Debug().Str("method", "AddConversationSummary").Str("user_id", cs.UserID).Msg("called")
	id, err := s.insert(ctx, s.builder.
		Insert("conversation_summaries").
		Columns("user_id", "conversation_key", "summary", "updated_at").
		Values(cs.UserID, cs.ConversationKey, cs.Summary, unixOrNow(cs.UpdatedAt)))
	if err != nil {
		return 0, fmt.Errorf("add conversation summary: %w", err)
	}
	cs.ID = id
	return id, nil
}

// AddTurn stores one raw message on its surface and returns its id.
func (s *Store) AddTurn(ctx context.Context, t *Turn) (int64, error) {
	s.logger.Debug().Str("method", "AddTurn").Str("user_id", t.UserID).Str("surface", string(t.Surface)).Msg("called")
	table, ok := surfaceTables[t.Surface]
	if !ok {
		return 0, fmt.Errorf("add turn: unknown surface %q", t.Surface)
	}
	id, err := s.insert(ctx, s.builder.
		Insert(table).
		Columns("user_id", "role", "content", "created_at").
		Values(t.UserID, t.Role, t.Content, unixOrNow(t.CreatedAt)))
	if err != nil {
		return 0, fmt.Errorf("add turn: %w", err)
	}
	t.ID = id
	return id, nil
}

// AddBehaviorPattern stores a detected behavior pattern and returns its id.
func (s *Store) AddBehaviorPattern(ctx context.Context, p *BehaviorPattern) (int64, error) {
	s.logger.Debug().Str("method", "AddBehaviorPattern").Str("user_id", p.UserID).Str("type", p.Type).Msg("called")
	id, err := s.insert(ctx, s.builder.
		Insert("behavior_patterns").
		Columns("user_id", "pattern_type", "description", "confidence", "last_confirmed_at").
		Values(p.UserID, p.Type, p.Description, p.Confidence, unixOrNil(p.LastConfirmedAt)))
	if err != nil {
		return 0, fmt.Errorf("add behavior pattern: %w", err)
	}
	p.ID = id
	return id, nil
}

// SaveDailyLog inserts or replaces the log for one user and date.
func (s *Store) SaveDailyLog(ctx context.Context, l *DailyLog) error {
	s.logger.Debug().Str("method", "SaveDailyLog").Str("user_id", l.UserID).Str("date", l.Date).Msg("called")
	query := s.builder.
		Insert("daily_logs").
		Columns("user_id", "log_date", "morning_mood", "evening_mood", "morning_energy", "evening_energy").
		Values(l.UserID, l.Date, intOrNil(l.MorningMood), intOrNil(l.EveningMood),
			intOrNil(l.MorningEnergy), intOrNil(l.EveningEnergy)).
		Suffix(`ON CONFLICT (user_id, log_date) DO UPDATE SET
			morning_mood = excluded.morning_mood,
			evening_mood = excluded.evening_mood,
			morning_energy = excluded.morning_energy,
			evening_energy = excluded.evening_energy`)
	if _, err := s.exec(ctx, query); err != nil {
		return fmt.Errorf("save daily log: %w", err)
	}
	return nil
}

// RecordProactiveQuestion stores a generated question as sent now and
// returns its id.
func (s *Store) RecordProactiveQuestion(ctx context.Context, q *ProactiveQuestion) (int64, error) {
	s.logger.Debug().Str("method", "RecordProactiveQuestion").
		Str("user_id", q.UserID).
		Str("question", truncateString(q.Question, 80)).
		Msg("called")

	now := time.Now().UTC().Truncate(time.Second)
	if q.SentAt == nil {
		q.SentAt = &now
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	return s.insertQuestion(ctx, q)
}

func (s *Store) insertQuestion(ctx context.Context, q *ProactiveQuestion) (int64, error) {
	if q.Source == "" {
		q.Source = "fallback"
	}
	var score interface{}
	if q.QualityScore != nil {
		score = *q.QualityScore
	}

	id, err := s.insert(ctx, s.builder.
		Insert("proactive_questions").
		Columns("user_id", "gap", "question", "source", "sent_at", "answered_at", "quality_score", "created_at").
		Values(q.UserID, q.Gap, q.Question, q.Source, unixOrNil(q.SentAt), unixOrNil(q.AnsweredAt), score, unixOrNow(q.CreatedAt)))
	if err != nil {
		return 0, fmt.Errorf("record proactive question: %w", err)
	}
	q.ID = id
	return id, nil
}

// MarkQuestionAnswered stamps a recorded question as answered.
func (s *Store) MarkQuestionAnswered(ctx context.Context, id int64, answeredAt time.Time) error {
	s.logger.Debug().Str("method", "MarkQuestionAnswered").Int64("id", id).Msg("called")
	n, err := s.exec(ctx, s.builder.
		Update("proactive_questions").
		Set("answered_at", unixOrNow(answeredAt)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("mark question answered: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark question answered: no question with id %d", id)
	}
	return nil
}
