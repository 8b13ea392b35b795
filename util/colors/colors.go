// Copyright 2021-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package colors

import (
	"fmt"
	"io"
	"regexp"
)

var Red = "\033[31;1m"
var Yellow = "\033[33;1m"
var Mint = "\033[38;5;48;1m"

var Clear = "\033[0;0m"

func Fprint(w io.Writer, color string, args ...interface{}) {
	fmt.Fprint(w, color)
	fmt.Fprint(w, args...)
	fmt.Fprintln(w, Clear)
}

var uncolorRegexp = regexp.MustCompile("\x1b\\[([0-9]+;)*[0-9]+m")
var unwhiteRegexp = regexp.MustCompile(`\s+`)

// Uncolor strips terminal color codes and collapses whitespace.
func Uncolor(text string) string {
	text = uncolorRegexp.ReplaceAllString(text, "")
	return unwhiteRegexp.ReplaceAllString(text, " ")
}
