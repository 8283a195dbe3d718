package grading

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mind-engage/mindengage-academy/internal/errs"
)

// normalize does simple casefolding and trims punctuation/extra spaces.
func normalize(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

// ResolveChoice maps an answer given as option text onto the canonical
// option index. Text is compared after normalize; when nothing matches, a
// bare integer within range is taken as the index itself. Two options that
// normalize to the same text make a text answer ambiguous.
func ResolveChoice(options []string, answer string) (int, error) {
	want := normalize(answer)
	match := -1
	if want != "" {
		for i, opt := range options {
			if normalize(opt) != want {
				continue
			}
			if match >= 0 {
				return 0, fmt.Errorf("%w: answer %q matches options %d and %d", errs.ErrInvalidInput, answer, match, i)
			}
			match = i
		}
	}
	if match >= 0 {
		return match, nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(answer)); err == nil && n >= 0 && n < len(options) {
		return n, nil
	}
	return 0, fmt.Errorf("%w: answer %q is not one of the options", errs.ErrInvalidInput, answer)
}
