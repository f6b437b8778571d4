package numbering

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyCounter is returned by IncrementAndGetTopLevel when no heading has
// been recorded yet. This indicates a caller bug, not a recoverable condition.
var ErrEmptyCounter = errors.New("cannot increment top level section counter before any section")

type frame struct {
	level int
	count int
}

// HeadingCounter produces hierarchical section numbers ("1.2.3") for a
// depth-first traversal of headings. Levels are arbitrary integers; negative
// levels are used for synthetic structure (chapter = -2, article = -1).
// A counter is scoped to a single book render and must not be shared.
type HeadingCounter struct {
	stack []frame
}

// NewHeadingCounter returns an empty counter.
func NewHeadingCounter() *HeadingCounter {
	return &HeadingCounter{}
}

// IncrementAndGet records the next heading at the given level and returns its
// dotted section number. Headings deeper than the given level are discarded;
// a heading shallower than everything seen so far takes over the count of the
// shallowest discarded frame, so jumping levels still yields coherent numbers.
func (c *HeadingCounter) IncrementAndGet(level int) string {
	carry := 0
	for len(c.stack) > 0 && c.stack[len(c.stack)-1].level > level {
		carry = c.stack[len(c.stack)-1].count
		c.stack = c.stack[:len(c.stack)-1]
	}
	if len(c.stack) > 0 && c.stack[len(c.stack)-1].level == level {
		c.stack[len(c.stack)-1].count++
	} else {
		c.stack = append(c.stack, frame{level: level, count: carry + 1})
	}
	return c.render()
}

// IncrementAndGetTopLevel records a heading one level shallower than the
// shallowest level seen so far. Used for trailing book sections (contributors,
// images, license) which attach at the book's outermost structural level.
func (c *HeadingCounter) IncrementAndGetTopLevel() (string, error) {
	if len(c.stack) == 0 {
		return "", ErrEmptyCounter
	}
	return c.IncrementAndGet(c.stack[0].level - 1), nil
}

func (c *HeadingCounter) render() string {
	parts := make([]string, len(c.stack))
	for i, f := range c.stack {
		parts[i] = strconv.Itoa(f.count)
	}
	return strings.Join(parts, ".")
}
