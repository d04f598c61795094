// Package verse addresses the 700-verse corpus by (chapter, verse) coordinate:
// the static verse-count table, bounded traversal, the seeded daily-verse
// selection and textual reference parsing.
package verse

import (
	"github.com/FocuswithJustin/GitaCompanion/core/errors"
)

// Chapters is the number of chapters in the corpus.
const Chapters = 18

// verseCounts holds the published verse count of each chapter, 1-indexed via
// verseCounts[chapter-1].
var verseCounts = [Chapters]int{
	47, 72, 43, 42, 29, 47, 30, 28, 34,
	42, 55, 20, 34, 27, 20, 24, 28, 78,
}

// VerseCount returns the number of verses in chapter.
// Chapters outside [1, Chapters] yield an *errors.OutOfRangeError.
func VerseCount(chapter int) (int, error) {
	if chapter < 1 || chapter > Chapters {
		return 0, errors.NewOutOfRange("chapter", chapter, 1, Chapters)
	}
	return verseCounts[chapter-1], nil
}

// mustCount is VerseCount for chapters already known to be in range.
func mustCount(chapter int) int {
	return verseCounts[chapter-1]
}

// TotalVerses returns the number of verses across all chapters.
func TotalVerses() int {
	total := 0
	for _, n := range verseCounts {
		total += n
	}
	return total
}

// Last returns the final coordinate of the corpus.
func Last() Coordinate {
	return Coordinate{Chapter: Chapters, Verse: mustCount(Chapters)}
}

// First returns the opening coordinate of the corpus.
func First() Coordinate {
	return Coordinate{Chapter: 1, Verse: 1}
}
