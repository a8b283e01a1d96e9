// Copyright 2018 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package color provides ANSI terminal coloring helpers used by lib/logger.
package color

import (
	"fmt"
	"os"
)

const (
	escape = "\x1b["
	clear  = "\x1b[0m"
)

// ColorCode is an ANSI foreground color code.
type ColorCode int

const (
	BlackFg   ColorCode = 30
	RedFg     ColorCode = 31
	GreenFg   ColorCode = 32
	YellowFg  ColorCode = 33
	BlueFg    ColorCode = 34
	MagentaFg ColorCode = 35
	CyanFg    ColorCode = 36
	WhiteFg   ColorCode = 37
	DefaultFg ColorCode = 39
)

// Colorfn formats a string, optionally wrapping it in a fixed color.
type Colorfn func(format string, a ...interface{}) string

// EnableColor selects when colored output should be produced. It implements
// flag.Value so it can be bound directly to a command-line flag.
type EnableColor int

const (
	ColorNever EnableColor = iota
	ColorAuto
	ColorAlways
)

func (e *EnableColor) String() string {
	switch *e {
	case ColorNever:
		return "never"
	case ColorAlways:
		return "always"
	default:
		return "auto"
	}
}

func (e *EnableColor) Set(s string) error {
	switch s {
	case "never":
		*e = ColorNever
	case "always":
		*e = ColorAlways
	case "auto":
		*e = ColorAuto
	default:
		return fmt.Errorf("invalid color mode %q: must be never, auto or always", s)
	}
	return nil
}

// Color formats strings with ANSI color codes, or passes them through
// unmodified when color is disabled.
type Color struct {
	enabled bool
}

// NewColor constructs a Color according to mode. ColorAuto enables color
// only when stdout is a terminal-like destination; since this package has no
// portable isatty check, ColorAuto is treated conservatively as disabled
// unless FORCE_COLOR is set in the environment.
func NewColor(mode EnableColor) *Color {
	enabled := false
	switch mode {
	case ColorAlways:
		enabled = true
	case ColorAuto:
		enabled = os.Getenv("FORCE_COLOR") != ""
	case ColorNever:
		enabled = false
	}
	return &Color{enabled: enabled}
}

// WithColor formats format/a with fmt.Sprintf and, if color is enabled,
// wraps the result in the ANSI escape for code.
func (c *Color) WithColor(code ColorCode, format string, a ...interface{}) string {
	str := fmt.Sprintf(format, a...)
	if !c.enabled || code == DefaultFg {
		return str
	}
	return fmt.Sprintf("%v%vm%v%v", escape, code, str, clear)
}

func (c *Color) Black(format string, a ...interface{}) string {
	return c.WithColor(BlackFg, format, a...)
}

func (c *Color) Red(format string, a ...interface{}) string {
	return c.WithColor(RedFg, format, a...)
}

func (c *Color) Green(format string, a ...interface{}) string {
	return c.WithColor(GreenFg, format, a...)
}

func (c *Color) Yellow(format string, a ...interface{}) string {
	return c.WithColor(YellowFg, format, a...)
}

func (c *Color) Blue(format string, a ...interface{}) string {
	return c.WithColor(BlueFg, format, a...)
}

func (c *Color) Magenta(format string, a ...interface{}) string {
	return c.WithColor(MagentaFg, format, a...)
}

func (c *Color) Cyan(format string, a ...interface{}) string {
	return c.WithColor(CyanFg, format, a...)
}

func (c *Color) White(format string, a ...interface{}) string {
	return c.WithColor(WhiteFg, format, a...)
}

func (c *Color) DefaultColor(format string, a ...interface{}) string {
	return c.WithColor(DefaultFg, format, a...)
}
