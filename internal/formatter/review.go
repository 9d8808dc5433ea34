package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/crossfade/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// RenderReview draws the proposed mappings for terminal review: one line per source track with its
// destination (or a miss marker), the ladder stage that matched it and a summary footer.
func RenderReview(title string, src, dst models.Platform, mappings []models.Mapping) string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("%s: %s → %s", title, src.DisplayName(), dst.DisplayName())))
	b.WriteByte('\n')

	matched := 0
	width := len(fmt.Sprint(len(mappings)))
	for i, m := range mappings {
		num := fmt.Sprintf("%*d.", width, i+1)
		if m.Matched() {
			matched++
			fmt.Fprintf(&b, "%s %s %s %s %s\n",
				num, m.SourceTrack.Label(), styles.ok.Render("→"), m.DestinationTrack.Label(),
				styles.help.Render(fmt.Sprintf("[%s %.0f%%]", m.Stage, m.Confidence*100)))
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", num, m.SourceTrack.Label(), styles.err.Render("✗ no match"))
	}

	summary := fmt.Sprintf("%d/%d matched", matched, len(mappings))
	if matched < len(mappings) {
		b.WriteString("\n" + styles.warn.Render(summary) + "\n")
	} else {
		b.WriteString("\n" + styles.ok.Render(summary) + "\n")
	}
	return b.String()
}

// Success renders a confirmation line.
func Success(msg string) string { return styles.ok.Render(msg) }

// Failure renders an error line.
func Failure(msg string) string { return styles.err.Render(msg) }
