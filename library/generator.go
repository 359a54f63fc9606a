package library

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/orian/promptlib/models"
)

// Generator bounds.
const (
	MinGenerate     = 1
	MaxGenerate     = 1000
	DefaultGenerate = 50
)

// Vocabulary is the pool of axis values synthetic records are drawn from.
type Vocabulary struct {
	Personas  []string `json:"personas"`
	Themes    []string `json:"themes"`
	PostTypes []string `json:"postTypes"`
}

// DefaultVocabulary returns the built-in axis values.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Personas: []string{
			"Consumer Lawyer", "Copywriter", "Social Media Manager", "Technology Teacher",
			"SEO Specialist", "Career Mentor", "Programmer", "Nutritionist",
		},
		Themes: []string{
			"Marketing", "Content Creation", "Web Development", "Business",
			"Law", "Education", "Health & Wellness", "Productivity",
		},
		PostTypes: []string{
			"Instagram Carousel", "Tweet/Thread", "LinkedIn Post", "Reels/TikTok",
			"Caption", "Long Video", "Blog Title", "Email",
		},
	}
}

// VocabularyFrom collects the distinct non-empty axis values of records in
// first-seen order. Axes without any value fall back to DefaultVocabulary.
func VocabularyFrom(records []models.PromptRecord) Vocabulary {
	def := DefaultVocabulary()
	return Vocabulary{
		Personas:  orDefault(distinct(records, models.AxisPersona), def.Personas),
		Themes:    orDefault(distinct(records, models.AxisTheme), def.Themes),
		PostTypes: orDefault(distinct(records, models.AxisPostType), def.PostTypes),
	}
}

// ClampCount clamps a requested generator count into [MinGenerate, MaxGenerate].
func ClampCount(n int) int {
	return min(max(n, MinGenerate), MaxGenerate)
}

// Generate builds ClampCount(n) synthetic records drawn from vocab, with ids
// counting up from firstID.
func Generate(vocab Vocabulary, n int, firstID int64, rng *rand.Rand) []models.PromptRecord {
	n = ClampCount(n)
	out := make([]models.PromptRecord, 0, n)
	for i := 0; i < n; i++ {
		persona := pick(rng, vocab.Personas)
		theme := pick(rng, vocab.Themes)
		postType := pick(rng, vocab.PostTypes)
		id := firstID + int64(i)

		out = append(out, models.PromptRecord{
			ID:       id,
			Title:    fmt.Sprintf("%s • %s • %s • #%d", postType, theme, persona, id),
			Persona:  persona,
			Theme:    theme,
			PostType: postType,
			Tags:     models.AxisTags(persona, theme, postType),
			Body: fmt.Sprintf("Act as a %s and create a %s about %s. "+
				"Use clear language, include 3 practical real-world examples, "+
				"lay out a step-by-step plan and finish with a call to action.",
				persona, strings.ToLower(postType), theme),
		})
	}
	return out
}

func pick(rng *rand.Rand, values []string) string {
	if len(values) == 0 {
		return MissingValue
	}
	return values[rng.IntN(len(values))]
}

func distinct(records []models.PromptRecord, axis models.Axis) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		v := axis.Value(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
