package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Naming transforms result column names into dynamic attribute names.
type Naming string

const (
	NamingIdentity Naming = "identity"
	NamingCamel    Naming = "camel"
	NamingSnake    Naming = "snake"
)

// Valid reports whether n is a known naming transform.
func (n Naming) Valid() bool {
	switch n {
	case NamingIdentity, NamingCamel, NamingSnake:
		return true
	}
	return false
}

// Apply transforms a column name, e.g. "HIRE_DATE" becomes "hireDate"
// (camel) or "hire_date" (snake).
func (n Naming) Apply(column string) string {
	switch n {
	case NamingCamel:
		words := splitWords(column)
		if len(words) == 0 {
			return column
		}
		// Casers are stateful and not safe to share between goroutines.
		title := cases.Title(language.Und)
		var b strings.Builder
		b.WriteString(strings.ToLower(words[0]))
		for _, w := range words[1:] {
			b.WriteString(title.String(strings.ToLower(w)))
		}
		return b.String()
	case NamingSnake:
		words := splitWords(column)
		if len(words) == 0 {
			return column
		}
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
		return strings.Join(words, "_")
	default:
		return column
	}
}

// splitWords breaks a name on non-alphanumerics and on lower-to-upper case
// transitions. Runs of capitals stay together: "EMPLOYEE_ID" is two words and
// "employeeID" is "employee", "ID".
func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
