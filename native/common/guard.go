package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed pause set, typically loaded from configuration.
type StaticPauses map[string]bool

// NewStaticPauses builds a pause set from module names, ignoring blanks.
func NewStaticPauses(modules []string) StaticPauses {
	p := make(StaticPauses, len(modules))
	for _, m := range modules {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			p[trimmed] = true
		}
	}
	return p
}

func (p StaticPauses) IsPaused(module string) bool { return p[module] }
