// Package fixture is a self-contained implementation of the assessment
// backend for local development and tests.
package fixture

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/hangeul/internal/assessment"
)

//go:embed sample.yaml
var sampleYAML []byte

// Content is the YAML document the fixture serves.
type Content struct {
	Categories  []assessment.Category `yaml:"categories"`
	Assessments []AssessmentContent   `yaml:"assessments"`

	// Leaderboard seeds other learners' scores.
	Leaderboard []SeedScore `yaml:"leaderboard"`
}

// AssessmentContent is a listing entry with its question set.
type AssessmentContent struct {
	assessment.Assessment `yaml:",inline"`
	Questions             []assessment.Question `yaml:"questions"`
}

// SeedScore is a pre-recorded leaderboard score.
type SeedScore struct {
	DisplayName  string `yaml:"display_name"`
	AssessmentID string `yaml:"assessment_id"`
	Score        int    `yaml:"score"`
}

// Sample returns the built-in Korean sample content.
func Sample() (*Content, error) {
	return ParseContent(sampleYAML)
}

// LoadContent reads content from a YAML file.
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	c, err := ParseContent(data)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", path, err)
	}
	return c, nil
}

// ParseContent decodes and validates a content document. Questions are
// normalized and QuestionCount is derived from the question list.
func ParseContent(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}

	categories := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("category without id")
		}
		categories[cat.ID] = true
	}

	seen := make(map[string]bool, len(c.Assessments))
	for i := range c.Assessments {
		a := &c.Assessments[i]
		if a.ID == "" {
			return nil, fmt.Errorf("assessment %d: missing id", i)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate assessment %q", a.ID)
		}
		seen[a.ID] = true
		if !categories[a.CategoryID] {
			return nil, fmt.Errorf("assessment %q: unknown category %q", a.ID, a.CategoryID)
		}
		if a.DurationSeconds < 0 {
			return nil, fmt.Errorf("assessment %q: negative duration", a.ID)
		}

		ids := make(map[string]bool, len(a.Questions))
		for j := range a.Questions {
			q := &a.Questions[j]
			q.Normalize()
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("assessment %q question %d: %w", a.ID, j, err)
			}
			if ids[q.ID] {
				return nil, fmt.Errorf("assessment %q: duplicate question %q", a.ID, q.ID)
			}
			ids[q.ID] = true
		}
		a.QuestionCount = len(a.Questions)
	}
	return &c, nil
}

func (c *Content) assessment(id string) (*AssessmentContent, bool) {
	for i := range c.Assessments {
		if c.Assessments[i].ID == id {
			return &c.Assessments[i], true
		}
	}
	return nil, false
}
