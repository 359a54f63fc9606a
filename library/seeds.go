package library

import (
	"fmt"
	"strings"

	"github.com/orian/promptlib/models"
)

const seedsPerPersona = 8

// DefaultSeeds returns the starter collection used when nothing has been
// stored yet: eight prompts per built-in persona, rotating through the
// themes and post types.
func DefaultSeeds() []models.PromptRecord {
	vocab := DefaultVocabulary()
	seeds := make([]models.PromptRecord, 0, len(vocab.Personas)*seedsPerPersona)

	var id int64 = 1
	for p, persona := range vocab.Personas {
		for i := 0; i < seedsPerPersona; i++ {
			theme := vocab.Themes[(p+i)%len(vocab.Themes)]
			postType := vocab.PostTypes[(p+i)%len(vocab.PostTypes)]
			seeds = append(seeds, models.PromptRecord{
				ID:       id,
				Title:    fmt.Sprintf("%s • %s • %s • #%d", postType, theme, persona, i+1),
				Persona:  persona,
				Theme:    theme,
				PostType: postType,
				Tags:     models.AxisTags(persona, theme, postType),
				Body: fmt.Sprintf("Act as a %s and write a %s about %q.\n"+
					"- Audience: beginner to intermediate\n"+
					"- Tone: clear, practical and persuasive\n"+
					"- Deliver: 5 variations plus a final call to action.\n"+
					"Use bullet points and real market examples.",
					persona, strings.ToLower(postType), theme),
			})
			id++
		}
	}
	return seeds
}
