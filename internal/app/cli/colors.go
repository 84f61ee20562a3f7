package cli

import "github.com/ozacod/cppenv/internal/pkg/utils/colors"

const (
	Reset   = colors.Reset
	Red     = colors.Red
	Green   = colors.Green
	Yellow  = colors.Yellow
	Blue    = colors.Blue
	Magenta = colors.Magenta
	Cyan    = colors.Cyan
	Bold    = colors.Bold
)
