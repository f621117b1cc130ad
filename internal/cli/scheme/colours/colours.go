package colours

import "github.com/fatih/color"

// Palette for command output. Logs go through logrus and are not coloured
// here.
var (
	Title    = color.New(color.FgCyan, color.Bold)
	Author   = color.New(color.FgMagenta)
	Error    = color.New(color.FgRed, color.Bold)
	Success  = color.New(color.FgGreen)
	Warning  = color.New(color.FgYellow)
	Progress = color.New(color.FgBlue)
	// Muted is for footers such as result counts under a table.
	Muted = color.New(color.FgHiBlack)
)
