package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// surfaceTables maps each conversation surface to its raw-turn table.
var surfaceTables = map[Surface]string{
	SurfaceChat:  "chat_messages",
	SurfaceCoach: "coach_messages",
}

// GetUnderstanding returns the user's belief-state row, or nil when none exists.
func (s *Store) GetUnderstanding(ctx context.Context, userID string) (*UserUnderstanding, error) {
	s.logger.Debug().Str("method", "GetUnderstanding").Str("user_id", userID).Msg("called")
	return safeOne(s.logger, "user_understanding", func() (*UserUnderstanding, error) {
		queryStr, args, err := s.builder.
			Select("user_id", "definition_of_success", "core_values", "motivations", "strengths",
				"blockers", "open_questions", "background", "current_situation", "work_style", "updated_at").
			From("user_understanding").
			Where(sq.Eq{"user_id": userID}).
			Limit(1).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build query: %w", err)
		}

		var (
			u                                                       UserUnderstanding
			success, background, situation, workStyle               sql.NullString
			values, motivations, strengths, blockers, openQuestions sql.NullString
			updatedAt                                               sql.NullInt64
		)
		if err := s.db.QueryRowContext(ctx, queryStr, args...).Scan(&u.UserID, &success, &values, &motivations,
			&strengths, &blockers, &openQuestions, &background, &situation, &workStyle, &updatedAt); err != nil {
			return nil, err
		}
		u.DefinitionOfSuccess = success.String
		u.CoreValues = decodeList(values)
		u.Motivations = decodeList(motivations)
		u.Strengths = decodeList(strengths)
		u.Blockers = decodeList(blockers)
		u.OpenQuestions = decodeList(openQuestions)
		u.Background = background.String
		u.CurrentSituation = situation.String
		u.WorkStyle = workStyle.String
		u.UpdatedAt = unixTime(updatedAt.Int64)
		return &u, nil
	})
}

// ListActiveProfileFacts returns the user's active profile facts, oldest first.
func (s *Store) ListActiveProfileFacts(ctx context.Context, userID string, limit int) ([]ProfileFact, error) {
	s.logger.Debug().Str("method", "ListActiveProfileFacts").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "profile_facts", func() ([]ProfileFact, error) {
		query := s.builder.
			Select("id", "user_id", "category", "fact", "created_at").
			From("profile_facts").
			Where(sq.Eq{"user_id": userID, "is_active": true}).
			OrderBy("category ASC", "created_at ASC", "id ASC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (ProfileFact, error) {
			var (
				f         ProfileFact
				createdAt int64
			)
			err := rows.Scan(&f.ID, &f.UserID, &f.Category, &f.Fact, &createdAt)
			f.Active = true
			f.CreatedAt = unixTime(createdAt)
			return f, err
		})
	})
}

// ListActiveInsights returns active insights ranked by importance, then recency.
func (s *Store) ListActiveInsights(ctx context.Context, userID string, limit int) ([]Insight, error) {
	s.logger.Debug().Str("method", "ListActiveInsights").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "insights", func() ([]Insight, error) {
		query := s.builder.
			Select("id", "user_id", "insight_type", "content", "importance", "created_at").
			From("insights").
			Where(sq.Eq{"user_id": userID, "is_active": true}).
			OrderBy("importance DESC", "created_at DESC", "id DESC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (Insight, error) {
			var (
				in        Insight
				createdAt int64
			)
			err := rows.Scan(&in.ID, &in.UserID, &in.Type, &in.Content, &in.Importance, &createdAt)
			in.Active = true
			in.CreatedAt = unixTime(createdAt)
			return in, err
		})
	})
}

// ListBehaviorPatterns returns pre-computed behavior patterns, most confident first.
func (s *Store) ListBehaviorPatterns(ctx context.Context, userID string, limit int) ([]BehaviorPattern, error) {
	s.logger.Debug().Str("method", "ListBehaviorPatterns").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "behavior_patterns", func() ([]BehaviorPattern, error) {
		query := s.builder.
			Select("id", "user_id", "pattern_type", "description", "confidence", "last_confirmed_at").
			From("behavior_patterns").
			Where(sq.Eq{"user_id": userID}).
			OrderBy("confidence DESC", "id ASC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (BehaviorPattern, error) {
			var (
				p         BehaviorPattern
				confirmed sql.NullInt64
			)
			err := rows.Scan(&p.ID, &p.UserID, &p.Type, &p.Description, &p.Confidence, &confirmed)
			p.LastConfirmedAt = nullTime(confirmed)
			return p, err
		})
	})
}

// ListProactiveQuestions returns the history of asked questions, newest first.
func (s *Store) ListProactiveQuestions(ctx context.Context, userID string, limit int) ([]ProactiveQuestion, error) {
	s.logger.Debug().Str("method", "ListProactiveQuestions").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "proactive_questions", func() ([]ProactiveQuestion, error) {
		query := s.builder.
			Select("id", "user_id", "gap", "question", "source", "sent_at", "answered_at", "quality_score", "created_at").
			From("proactive_questions").
			Where(sq.Eq{"user_id": userID}).
			OrderBy("created_at DESC", "id DESC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (ProactiveQuestion, error) {
			var (
				q                  ProactiveQuestion
				source             sql.NullString
				sentAt, answeredAt sql.NullInt64
				score              sql.NullFloat64
				createdAt          int64
			)
			err := rows.Scan(&q.ID, &q.UserID, &q.Gap, &q.Question, &source, &sentAt, &answeredAt, &score, &createdAt)
			q.Source = source.String
			q.SentAt = nullTime(sentAt)
			q.AnsweredAt = nullTime(answeredAt)
			if score.Valid {
				v := score.Float64
				q.QualityScore = &v
			}
			q.CreatedAt = unixTime(createdAt)
			return q, err
		})
	})
}

// ListProjects returns the user's projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, userID string, limit int) ([]Project, error) {
	s.logger.Debug().Str("method", "ListProjects").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "projects", func() ([]Project, error) {
		query := s.builder.
			Select("id", "user_id", "name", "description", "status", "updated_at").
			From("projects").
			Where(sq.Eq{"user_id": userID}).
			OrderBy("updated_at DESC", "id DESC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (Project, error) {
			var (
				p           Project
				description sql.NullString
				updatedAt   int64
			)
			err := rows.Scan(&p.ID, &p.UserID, &p.Name, &description, &p.Status, &updatedAt)
			p.Description = description.String
			p.UpdatedAt = unixTime(updatedAt)
			return p, err
		})
	})
}

// ListMilestones returns at most perProject milestones for each of the given
// projects, in each project's sort order.
func (s *Store) ListMilestones(ctx context.Context, projectIDs []int64, perProject int) ([]Milestone, error) {
	s.logger.Debug().Str("method", "ListMilestones").Int("projects", len(projectIDs)).Int("per_project", perProject).Msg("called")
	if len(projectIDs) == 0 {
		return []Milestone{}, nil
	}
	return safeList(s.logger, "milestones", func() ([]Milestone, error) {
		ranked := s.builder.
			Select("id", "project_id", "title", "status", "focus_level", "sort_order", "updated_at",
				"ROW_NUMBER() OVER (PARTITION BY project_id ORDER BY sort_order ASC, id ASC) AS rn").
			From("milestones").
			Where(sq.Eq{"project_id": projectIDs})
		query := s.builder.
			Select("id", "project_id", "title", "status", "focus_level", "sort_order", "updated_at").
			FromSelect(ranked, "ranked").
			OrderBy("project_id ASC", "sort_order ASC", "id ASC")
		if perProject > 0 {
			query = query.Where(sq.LtOrEq{"rn": perProject})
		}
		return queryRows(ctx, s.db, query, func(rows *sql.Rows) (Milestone, error) {
			var (
				m         Milestone
				updatedAt sql.NullInt64
			)
			err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Status, &m.FocusLevel, &m.SortOrder, &updatedAt)
			m.UpdatedAt = unixTime(updatedAt.Int64)
			return m, err
		})
	})
}

// ListConversationSummaries returns the most recently updated conversation summaries.
func (s *Store) ListConversationSummaries(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	s.logger.Debug().Str("method", "ListConversationSummaries").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "conversation_summaries", func() ([]ConversationSummary, error) {
		query := s.builder.
			Select("id", "user_id", "conversation_key", "summary", "updated_at").
			From("conversation_summaries").
			Where(sq.Eq{"user_id": userID}).
			OrderBy("updated_at DESC", "id DESC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (ConversationSummary, error) {
			var (
				cs        ConversationSummary
				updatedAt int64
			)
			err := rows.Scan(&cs.ID, &cs.UserID, &cs.ConversationKey, &cs.Summary, &updatedAt)
			cs.UpdatedAt = unixTime(updatedAt)
			return cs, err
		})
	})
}

// ListRecentTurns returns the newest raw turns from one conversation surface.
func (s *Store) ListRecentTurns(ctx context.Context, userID string, surface Surface, limit int) ([]Turn, error) {
	s.logger.Debug().Str("method", "ListRecentTurns").Str("user_id", userID).Str("surface", string(surface)).Int("limit", limit).Msg("called")
	table, ok := surfaceTables[surface]
	if !ok {
		return []Turn{}, &QueryError{Query: "turns", Err: fmt.Errorf("unknown surface %q", surface)}
	}
	return safeList(s.logger, table, func() ([]Turn, error) {
		query := s.builder.
			Select("id", "user_id", "role", "content", "created_at").
			From(table).
			Where(sq.Eq{"user_id": userID}).
			OrderBy("created_at DESC", "id DESC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (Turn, error) {
			var (
				t         Turn
				createdAt int64
			)
			err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &createdAt)
			t.Surface = surface
			t.CreatedAt = unixTime(createdAt)
			return t, err
		})
	})
}

// ListDailyLogs returns the most recent daily logs, newest first.
func (s *Store) ListDailyLogs(ctx context.Context, userID string, limit int) ([]DailyLog, error) {
	s.logger.Debug().Str("method", "ListDailyLogs").Str("user_id", userID).Int("limit", limit).Msg("called")
	return safeList(s.logger, "daily_logs", func() ([]DailyLog, error) {
		query := s.builder.
			Select("id", "user_id", "log_date", "morning_mood", "evening_mood", "morning_energy", "evening_energy").
			From("daily_logs").
			Where(sq.Eq{"user_id": userID}).
			OrderBy("log_date DESC", "id DESC")
		return queryRows(ctx, s.db, limited(query, limit), func(rows *sql.Rows) (DailyLog, error) {
			var (
				l                      DailyLog
				mMood, eMood, mEn, eEn sql.NullInt64
			)
			err := rows.Scan(&l.ID, &l.UserID, &l.Date, &mMood, &eMood, &mEn, &eEn)
			l.MorningMood = nullInt(mMood)
			l.EveningMood = nullInt(eMood)
			l.MorningEnergy = nullInt(mEn)
			l.EveningEnergy = nullInt(eEn)
			return l, err
		})
	})
}

func limited(query sq.SelectBuilder, limit int) sq.SelectBuilder {
	if limit > 0 {
		return query.Limit(uint64(limit))
	}
	return query
}

// queryRows runs query and scans every row with scan.
func queryRows[T any](ctx context.Context, db *sql.DB, query sq.SelectBuilder, scan func(*sql.Rows) (T, error)) ([]T, error) {
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // No remedy for rows close errors

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
