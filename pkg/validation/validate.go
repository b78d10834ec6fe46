package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rules bounds user-supplied input. Zero values disable the corresponding
// check.
type Rules struct {
	MaxNameLen int
	MaxTextLen int
}

// DefaultRules keeps project names short and message text within a sane
// prompt size.
func DefaultRules() Rules {
	return Rules{MaxNameLen: 256, MaxTextLen: 64 * 1024}
}

var rules = DefaultRules()

// SetRules replaces the active rule set.
func SetRules(r Rules) { rules = r }

// ProjectName validates a project name after trimming.
func ProjectName(name string) error {
	var errs []string
	if !utf8.ValidString(name) {
		errs = append(errs, "name is not valid utf-8")
	}
	if rules.MaxNameLen > 0 && len(name) > rules.MaxNameLen {
		errs = append(errs, fmt.Sprintf("name too long: %d > %d", len(name), rules.MaxNameLen))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// MessageText validates submitted message text.
func MessageText(text string) error {
	var errs []string
	if !utf8.ValidString(text) {
		errs = append(errs, "text is not valid utf-8")
	}
	if rules.MaxTextLen > 0 && len(text) > rules.MaxTextLen {
		errs = append(errs, fmt.Sprintf("text too long: %d > %d", len(text), rules.MaxTextLen))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
