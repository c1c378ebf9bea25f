package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tagplayer/internal/feedback"
)

// Theme defines colors for the status panel.
type Theme struct {
	Name string

	Background string
	Surface    string
	Border     string

	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// CueColors maps feedback cues to badge colors.
	CueColors map[feedback.Cue]string
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Header      lipgloss.Style
	Footer      lipgloss.Style
	Panel       lipgloss.Style
	Label       lipgloss.Style
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	DangerText  lipgloss.Style

	cueColors  map[feedback.Cue]string
	background string
	muted      string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Bold(true).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Width(10),

		Text:       lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		AccentText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		cueColors:  t.CueColors,
		background: t.Background,
		muted:      t.Muted,
	}
}

// CueStyle returns the badge style for a cue.
func (s Styles) CueStyle(c feedback.Cue) lipgloss.Style {
	color := s.cueColors[c]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Bold(true).
		Padding(0, 1)
}

var themes = map[string]Theme{
	"Dracula":  draculaTheme(),
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
}

var themeOrder = []string{"Dracula", "Nightfox", "Kanagawa"}

// GetTheme returns a theme by name, falling back to Dracula.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return draculaTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func cueColors(muted, info, accent, success, warning, danger string) map[feedback.Cue]string {
	return map[feedback.Cue]string{
		feedback.CueStartup:         muted,
		feedback.CueConnecting:      info,
		feedback.CueConnectionError: danger,
		feedback.CueAPIConnecting:   info,
		feedback.CueAPIError:        warning,
		feedback.CueIdle:            accent,
		feedback.CueTagReading:      info,
		feedback.CueTagProcessing:   info,
		feedback.CueSuccess:         success,
		feedback.CueFailure:         danger,
		feedback.CueDeviceSelected:  success,
		feedback.CueRestarting:      warning,
	}
}

func draculaTheme() Theme {
	// Dracula palette: https://draculatheme.com/contribute
	t := Theme{
		Name:       "Dracula",
		Background: "#282a36",
		Surface:    "#44475a",
		Border:     "#6272a4",
		Text:       "#f8f8f2",
		Muted:      "#6272a4", // comment
		Accent:     "#bd93f9", // purple
		Success:    "#50fa7b", // green
		Warning:    "#f1fa8c", // yellow
		Danger:     "#ff5555", // red
		Info:       "#8be9fd", // cyan
	}
	t.CueColors = cueColors(t.Muted, t.Info, t.Accent, t.Success, t.Warning, t.Danger)
	return t
}

func nightfoxTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	t := Theme{
		Name:       "Nightfox",
		Background: "#131a24", // bg0
		Surface:    "#192330", // bg1
		Border:     "#39506d", // bg4
		Text:       "#cdcecf", // fg1
		Muted:      "#738091", // comment
		Accent:     "#719cd6", // blue
		Success:    "#81b29a", // green
		Warning:    "#dbc074", // yellow
		Danger:     "#c94f6d", // red
		Info:       "#63cdcf", // cyan
	}
	t.CueColors = cueColors(t.Muted, t.Info, t.Accent, t.Success, t.Warning, t.Danger)
	return t
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	t := Theme{
		Name:       "Kanagawa",
		Background: "#16161D", // sumiInk0
		Surface:    "#1F1F28", // sumiInk3
		Border:     "#54546D", // sumiInk6
		Text:       "#DCD7BA", // fujiWhite
		Muted:      "#727169", // fujiGray
		Accent:     "#7E9CD8", // crystalBlue
		Success:    "#98BB6C", // springGreen
		Warning:    "#E6C384", // carpYellow
		Danger:     "#E46876", // waveRed
		Info:       "#7FB4CA", // springBlue
	}
	t.CueColors = cueColors(t.Muted, t.Info, t.Accent, t.Success, t.Warning, t.Danger)
	return t
}
