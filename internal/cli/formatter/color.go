package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/bookable/internal/autosave"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// SetPlain turns color output off (or back on) for the whole process. Used
// when stdout is not a terminal.
func SetPlain(plain bool) {
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.ANSI256)
}

// Header renders an upper-cased section header over a dim underline.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", len(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}

// EnabledPill shows whether a form is live.
func EnabledPill(enabled bool) string {
	if enabled {
		return StyleGreen.Render("● LIVE")
	}
	return StyleDim.Render("○ DRAFT")
}

// AutosaveBadge renders the coordinator status for the watch loop.
func AutosaveBadge(st autosave.State) string {
	switch st.Status {
	case autosave.StatusSaving:
		return StyleBlue.Render("saving…")
	case autosave.StatusDirty:
		if st.Err != nil {
			return StyleYellow.Render("unsaved (" + st.Err.Error() + ")")
		}
		return StyleYellow.Render("unsaved")
	case autosave.StatusError:
		return StyleRed.Render(fmt.Sprintf("save failed, retry %d", st.RetryCount))
	default:
		return StyleGreen.Render("saved")
	}
}
