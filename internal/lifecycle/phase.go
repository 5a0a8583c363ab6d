// Package lifecycle publishes foreground/background phase changes to
// subscribers such as refresh schedulers.
package lifecycle

import (
	"fmt"
	"strings"
)

// Phase is the process-wide activity phase.
type Phase int

const (
	Foreground Phase = iota
	Background
)

func (p Phase) String() string {
	if p == Background {
		return "background"
	}
	return "foreground"
}

// ParsePhase accepts "foreground"/"fg" and "background"/"bg".
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "foreground", "fg":
		return Foreground, nil
	case "background", "bg":
		return Background, nil
	}
	return Foreground, fmt.Errorf("unknown lifecycle phase %q", s)
}
