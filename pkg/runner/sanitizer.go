package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/mosaic/pkg/domain"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxInputSize bounds a single text value, in bytes.
const DefaultMaxInputSize = 4096

// EnvMaxInputSize overrides DefaultMaxInputSize.
const EnvMaxInputSize = "MOSAIC_MAX_INPUT_SIZE"

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans text written to input cells by clients.
// Text is rejected when oversized or not UTF-8, stripped of control
// characters other than newline, tab and carriage return, and put in NFC
// form so that dropdown options match however the client composed them.
type Sanitizer struct {
	MaxSize int
}

// NewSanitizer returns a Sanitizer honouring MOSAIC_MAX_INPUT_SIZE.
func NewSanitizer() Sanitizer {
	size := DefaultMaxInputSize
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			size = n
		}
	}
	return Sanitizer{MaxSize: size}
}

// Text cleans one string.
func (s Sanitizer) Text(input string) (string, error) {
	if len(input) > s.MaxSize {
		// Rejected, not truncated: a cut value would silently select something else.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), s.MaxSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, unsafeControl) >= 0 {
		input = strings.Map(func(r rune) rune {
			if unsafeControl(r) {
				return -1
			}
			return r
		}, input)
	}
	return norm.NFC.String(input), nil
}

// Value cleans the text carried by a value, descending into lists.
// Other kinds pass through unchanged.
func (s Sanitizer) Value(v domain.Value) (domain.Value, error) {
	switch v.Kind() {
	case domain.KindText, domain.KindMarkdown:
		text, _ := v.AsText()
		clean, err := s.Text(text)
		if err != nil {
			return domain.Value{}, err
		}
		if v.Kind() == domain.KindMarkdown {
			return domain.Markdown(clean), nil
		}
		return domain.Text(clean), nil
	case domain.KindList:
		items, _ := v.AsList()
		for i, item := range items {
			clean, err := s.Value(item)
			if err != nil {
				return domain.Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = clean
		}
		return domain.List(items...), nil
	}
	return v, nil
}

// Event cleans every change of an external event.
func (s Sanitizer) Event(ev domain.Event) (domain.Event, error) {
	out := domain.Event{Changes: make([]domain.Change, len(ev.Changes))}
	for i, c := range ev.Changes {
		v, err := s.Value(c.Value)
		if err != nil {
			return domain.Event{}, fmt.Errorf("cell %s: %w", c.Cell, err)
		}
		out.Changes[i] = domain.Set(c.Cell, v)
	}
	return out, nil
}

// SanitizeInput cleans a string with NewSanitizer.
func SanitizeInput(input string) (string, error) { return NewSanitizer().Text(input) }

// SanitizeValue cleans a value with NewSanitizer.
func SanitizeValue(v domain.Value) (domain.Value, error) { return NewSanitizer().Value(v) }

// SanitizeEvent cleans an event with NewSanitizer.
func SanitizeEvent(ev domain.Event) (domain.Event, error) { return NewSanitizer().Event(ev) }

// unsafeControl matches ANSI escapes, NUL, BEL and the like.
func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
