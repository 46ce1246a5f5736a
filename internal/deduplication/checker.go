package deduplication

import (
	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// Checker tests new flaws against a growing corpus
type Checker struct {
	engine *Engine
	corpus []Record
}

// NewChecker returns a checker over a copy of corpus
func NewChecker(engine *Engine, corpus []Record) *Checker {
	return &Checker{engine: engine, corpus: append([]Record(nil), corpus...)}
}

// IsDuplicate reports whether flaw falls into a duplicate-set of the corpus
func (c *Checker) IsDuplicate(flaw *types.Flaw) (bool, error) {
	return c.engine.IsDuplicate(c.corpus, RecordFromFlaw(flaw, false))
}

// Add puts a filed flaw into the corpus. flaw.ID must be its tracker id.
func (c *Checker) Add(flaw *types.Flaw) {
	c.corpus = append(c.corpus, RecordFromFlaw(flaw, false))
}

// Len returns the corpus size
func (c *Checker) Len() int {
	return len(c.corpus)
}
