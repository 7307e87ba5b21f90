package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRE = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
	urlRE   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// stopWords holds common English words plus the filler vocabulary of resumes
// and job ads. Tokens are checked both before and after plural folding.
var stopWords = toSet(`
a about above after again all also am an and any are as at be been before being below
between both but by can could did do does doing down during each etc few for from further
had has have having he her here hers him his how i if in into is it its itself just me
more most my no nor not now of off on once only or other our ours out over own same she
should so some such than that the their theirs them then there these they this those
through to too under until up very was we were what when where which while who whom why
will with would you your yours yourself

ability able candidate company day experience experienced good great help ideal including
join year looking must new plus preferred proven require required requirement
responsible responsibility role strong team use used using want well work worked working
`)

// singulars end in "s" but are not plurals.
var singulars = toSet(`
analysis axis basis crisis diagnosis emphasis hypothesis synopsis synthesis thesis
kubernetes redis jenkins pandas postgres series species news physics mathematics
statistics economics analytics devops
`)

// Scrub lowercases text and removes e-mail addresses, URLs and phone numbers.
// It only feeds vectorization; the normalized resume text is never scrubbed.
func Scrub(s string) string {
	s = strings.ToLower(s)
	s = emailRE.ReplaceAllString(s, " ")
	s = urlRE.ReplaceAllString(s, " ")
	s = phoneRE.ReplaceAllString(s, " ")
	return s
}

// Terms splits text into matching terms in order of appearance. Technology
// spellings such as "c++", "c#" and "node.js" survive as single terms; tokens
// without a letter and stop words are dropped, and plurals are folded.
func Terms(s string) []string {
	var out []string
	var word strings.Builder
	emit := func() {
		if word.Len() == 0 {
			return
		}
		t := strings.TrimRight(word.String(), ".")
		word.Reset()
		if !keepToken(t) || isStopWord(t) {
			return
		}
		t = foldPlural(t)
		if isStopWord(t) {
			return
		}
		out = append(out, t)
	}

	for _, r := range Scrub(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
			continue
		}
		emit()
	}
	emit()
	return out
}

func isStopWord(t string) bool {
	_, ok := stopWords[t]
	return ok
}

func keepToken(t string) bool {
	hasLetter := false
	for _, r := range t {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	if utf8.RuneCountInString(t) >= 2 {
		return true
	}
	return strings.ContainsAny(t, "+#")
}

func foldPlural(t string) string {
	for _, r := range t {
		if !unicode.IsLetter(r) {
			return t
		}
	}
	if _, ok := singulars[t]; ok {
		return t
	}
	n := len(t)
	switch {
	case n > 4 && strings.HasSuffix(t, "ies"):
		return t[:n-3] + "y"
	case n >= 4 && strings.HasSuffix(t, "s") &&
		!strings.HasSuffix(t, "ss") &&
		!strings.HasSuffix(t, "us"):
		return t[:n-1]
	}
	return t
}

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
