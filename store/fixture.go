package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixture is a YAML snapshot of everything recorded about one user.
type Fixture struct {
	UserID        string                `yaml:"user_id"`
	Understanding *UserUnderstanding    `yaml:"understanding"`
	Facts         []FixtureFact         `yaml:"facts"`
	Insights      []FixtureInsight      `yaml:"insights"`
	Projects      []FixtureProject      `yaml:"projects"`
	Summaries     []ConversationSummary `yaml:"summaries"`
	Turns         []Turn                `yaml:"turns"`
	Patterns      []BehaviorPattern     `yaml:"patterns"`
	Questions     []ProactiveQuestion   `yaml:"questions"`
	DailyLogs     []DailyLog            `yaml:"daily_logs"`
}

// FixtureFact is a profile fact whose active flag defaults to true.
type FixtureFact struct {
	Category  string    `yaml:"category"`
	Fact      string    `yaml:"fact"`
	Active    *bool     `yaml:"active"`
	CreatedAt time.Time `yaml:"created_at"`
}

// FixtureInsight is an insight whose active flag defaults to true.
type FixtureInsight struct {
	Type       string    `yaml:"type"`
	Content    string    `yaml:"content"`
	Importance int       `yaml:"importance"`
	Active     *bool     `yaml:"active"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// FixtureProject is a project together with its milestones.
type FixtureProject struct {
	Project    `yaml:",inline"`
	Milestones []Milestone `yaml:"milestones"`
}

// LoadFixture decodes a fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if f.UserID == "" {
		return nil, fmt.Errorf("fixture has no user_id")
	}
	return &f, nil
}

// Seed writes every record in the fixture under the fixture's user id.
func (s *Store) Seed(ctx context.Context, f *Fixture) error {
	userID := f.UserID
	s.logger.Info().Str("user_id", userID).Msg("Seeding user fixture")

	if f.Understanding != nil {
		u := *f.Understanding
		u.UserID = userID
		if err := s.SaveUnderstanding(ctx, &u); err != nil {
			return err
		}
	}
	for _, ff := range f.Facts {
		fact := ProfileFact{
			UserID:    userID,
			Category:  ff.Category,
			Fact:      ff.Fact,
			Active:    ff.Active == nil || *ff.Active,
			CreatedAt: ff.CreatedAt,
		}
		if _, err := s.AddProfileFact(ctx, &fact); err != nil {
			return err
		}
	}
	for _, fi := range f.Insights {
		in := Insight{
			UserID:     userID,
			Type:       fi.Type,
			Content:    fi.Content,
			Importance: fi.Importance,
			Active:     fi.Active == nil || *fi.Active,
			CreatedAt:  fi.CreatedAt,
		}
		if _, err := s.AddInsight(ctx, &in); err != nil {
			return err
		}
	}
	for i := range f.Projects {
		p := &f.Projects[i]
		p.UserID = userID
		projectID, err := s.AddProject(ctx, &p.Project)
		if err != nil {
			return err
		}
		for j := range p.Milestones {
			p.Milestones[j].ProjectID = projectID
			if _, err := s.AddMilestone(ctx, &p.Milestones[j]); err != nil {
				return err
			}
		}
	}
	for i := range f.Summaries {
		f.Summaries[i].UserID = userID
		if _, err := s.AddConversationSummary(ctx, &f.Summaries[i]); err != nil {
			return err
		}
	}
	for i := range f.Turns {
		f.Turns[i].UserID = userID
		if f.Turns[i].Surface == "" {
			f.Turns[i].Surface = SurfaceChat
		}
		if _, err := s.AddTurn(ctx, &f.Turns[i]); err != nil {
			return err
		}
	}
	for i := range f.Patterns {
		f.Patterns[i].UserID = userID
		if _, err := s.AddBehaviorPattern(ctx, &f.Patterns[i]); err != nil {
			return err
		}
	}
	for i := range f.Questions {
		f.Questions[i].UserID = userID
		if _, err := s.insertQuestion(ctx, &f.Questions[i]); err != nil {
			return err
		}
	}
	for i := range f.DailyLogs {
		f.DailyLogs[i].UserID = userID
		if err := s.SaveDailyLog(ctx, &f.DailyLogs[i]); err != nil {
			return err
		}
	}
	return nil
}
