package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/orian/promptlib/library"
	"github.com/orian/promptlib/models"
)

// bodyPreviewRunes is how much of a prompt body a card shows.
const bodyPreviewRunes = 160

type cardStyles struct {
	card   lipgloss.Style
	title  lipgloss.Style
	meta   lipgloss.Style
	tag    lipgloss.Style
	star   lipgloss.Style
	footer lipgloss.Style
}

// stylesFor returns the card palette for a view theme.
func stylesFor(theme models.Theme) cardStyles {
	border := lipgloss.Color("#2a3850")
	fg := lipgloss.Color("#f2f2f2")
	accent := lipgloss.Color("#8BC34A")
	if theme == models.ThemeLight {
		border = lipgloss.Color("#dce0e5")
		fg = lipgloss.Color("#101F38")
		accent = lipgloss.Color("#2196F3")
	}

	return cardStyles{
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		title:  lipgloss.NewStyle().Bold(true).Foreground(fg),
		meta:   lipgloss.NewStyle().Faint(true),
		tag:    lipgloss.NewStyle().Foreground(accent),
		star:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		footer: lipgloss.NewStyle().Faint(true).MarginTop(1),
	}
}

// RenderView draws the cards of a view followed by a paging footer.
func RenderView(v library.View, width int) string {
	styles := stylesFor(v.State.Theme)

	var b strings.Builder
	if len(v.Items) == 0 {
		b.WriteString("No prompts match the current filters.\n")
	}
	for _, card := range v.Items {
		b.WriteString(renderCard(styles, card, width))
		b.WriteString("\n")
	}

	b.WriteString(styles.footer.Render(fmt.Sprintf(
		"Page %d/%d · showing %d of %d matches · %d prompts",
		v.Page, v.TotalPages, v.Showing, v.Filtered, v.Total)))
	b.WriteString("\n")
	return b.String()
}

func renderCard(styles cardStyles, card library.Card, width int) string {
	title := styles.title.Render(fmt.Sprintf("[%d] %s", card.ID, card.Title))
	if card.Favorite {
		title = styles.star.Render("★") + " " + title
	}

	meta := styles.meta.Render(strings.Join([]string{card.Persona, card.Theme, card.PostType}, " · "))

	tags := make([]string, len(card.Tags))
	for i, t := range card.Tags {
		tags[i] = styles.tag.Render(models.FormatTag(t))
	}

	lines := []string{title, meta}
	if len(tags) > 0 {
		lines = append(lines, strings.Join(tags, " "))
	}
	if body := truncate(card.Body, bodyPreviewRunes); body != "" {
		lines = append(lines, "", body)
	}

	style := styles.card
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
