package verse

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
)

// reference is the parse tree of a textual verse reference such as
// "2:47", "BG 2.47", "Gita 18,78" or "chapter 2 verse 47".
type reference struct {
	Book    []string `parser:"@Word*"`
	Chapter int      `parser:"@Number"`
	Verse   *int     `parser:"( ( \":\" | \".\" | \",\" | \"verse\" | \"v\" )? @Number )?"`
}

var referenceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[A-Za-z]+\.?`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "Sep", Pattern: `[:.,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var referenceParser = participle.MustBuild[reference](
	participle.Lexer(referenceLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Word"),
)

// bookWords are the prefixes accepted in front of the chapter number.
var bookWords = map[string]bool{
	"bg":           true,
	"gita":         true,
	"geeta":        true,
	"bhagavad":     true,
	"bhagavadgita": true,
	"chapter":      true,
	"chap":         true,
	"ch":           true,
}

// ParseReference parses a textual reference into a coordinate.
// A reference without a verse ("BG 2") addresses the first verse of the
// chapter. Malformed input yields a *errors.ValidationError; a well-formed
// reference outside the corpus yields a *errors.OutOfRangeError.
func ParseReference(input string) (Coordinate, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Coordinate{}, errors.NewValidation("reference", "reference is empty")
	}

	ref, err := referenceParser.ParseString("", trimmed)
	if err != nil {
		return Coordinate{}, &errors.ValidationError{
			Field:   "reference",
			Value:   input,
			Message: fmt.Sprintf("cannot parse %q", input),
			Err:     err,
		}
	}

	for _, word := range ref.Book {
		if !bookWords[normalizeBookWord(word)] {
			return Coordinate{}, errors.NewValidation("reference", fmt.Sprintf("unknown book %q", word))
		}
	}

	c := Coordinate{Chapter: ref.Chapter, Verse: 1}
	if ref.Verse != nil {
		c.Verse = *ref.Verse
	}

	n, err := VerseCount(c.Chapter)
	if err != nil {
		return Coordinate{}, err
	}
	if c.Verse < 1 || c.Verse > n {
		return Coordinate{}, errors.NewOutOfRange("verse", c.Verse, 1, n)
	}
	return c, nil
}

func normalizeBookWord(word string) string {
	return strings.ToLower(strings.TrimSuffix(word, "."))
}
