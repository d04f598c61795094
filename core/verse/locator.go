package verse

import (
	"fmt"
	"math/rand/v2"
)

// Coordinate identifies one verse of the corpus.
type Coordinate struct {
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// String renders the coordinate as "chapter:verse".
func (c Coordinate) String() string {
	return fmt.Sprintf("%d:%d", c.Chapter, c.Verse)
}

// SlokPath returns the upstream request path for the coordinate.
func (c Coordinate) SlokPath() string {
	return fmt.Sprintf("/slok/%d/%d", c.Chapter, c.Verse)
}

// Validate reports whether c addresses an existing verse.
func Validate(c Coordinate) bool {
	if c.Chapter < 1 || c.Chapter > Chapters {
		return false
	}
	return c.Verse >= 1 && c.Verse <= mustCount(c.Chapter)
}

// Clamp moves an out-of-range coordinate to the nearest valid one.
// The chapter is clamped first, then the verse within that chapter.
func Clamp(c Coordinate) Coordinate {
	switch {
	case c.Chapter < 1:
		c.Chapter = 1
	case c.Chapter > Chapters:
		c.Chapter = Chapters
	}
	n := mustCount(c.Chapter)
	switch {
	case c.Verse < 1:
		c.Verse = 1
	case c.Verse > n:
		c.Verse = n
	}
	return c
}

// Next returns the verse after c. At the last verse of the corpus it
// returns c unchanged. Invalid input is clamped first.
func Next(c Coordinate) Coordinate {
	c = Clamp(c)
	if c.Verse < mustCount(c.Chapter) {
		return Coordinate{Chapter: c.Chapter, Verse: c.Verse + 1}
	}
	if c.Chapter < Chapters {
		return Coordinate{Chapter: c.Chapter + 1, Verse: 1}
	}
	return c
}

// Previous returns the verse before c. At 1:1 it returns c unchanged.
// Invalid input is clamped first.
func Previous(c Coordinate) Coordinate {
	c = Clamp(c)
	if c.Verse > 1 {
		return Coordinate{Chapter: c.Chapter, Verse: c.Verse - 1}
	}
	if c.Chapter > 1 {
		return Coordinate{Chapter: c.Chapter - 1, Verse: mustCount(c.Chapter - 1)}
	}
	return c
}

// Random picks a chapter uniformly, then a verse uniformly within it.
// Verses in short chapters are therefore individually more likely than
// verses in long ones. A nil rng uses the package-level source.
func Random(rng *rand.Rand) Coordinate {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	chapter := intN(Chapters) + 1
	return Coordinate{Chapter: chapter, Verse: intN(mustCount(chapter)) + 1}
}
