// Package slug строит ASCII-slug для URL из произвольной Unicode-строки.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	stripMarks      = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// From нормализует строку: снимает диакритику, приводит к нижнему регистру,
// заменяет всё кроме [a-z0-9] дефисом и обрезает дефисы по краям.
func From(s string) string {
	result, _, err := transform.String(stripMarks, s)
	if err != nil {
		result = s
	}
	result = strings.ToLower(result)
	result = nonAlphanumeric.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// WithSuffix добавляет к slug короткий суффикс, чтобы развести коллизии.
func WithSuffix(s, suffix string) string {
	base := From(s)
	suffix = From(suffix)
	switch {
	case base == "":
		return suffix
	case suffix == "":
		return base
	}
	return base + "-" + suffix
}
