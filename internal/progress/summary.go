package progress

import (
	"fmt"
	"sync"

	"github.com/ubtue/ztsharvest/internal/metadata"
)

// Counters accumulates the per-kind tallies a run summary line reports:
// items harvested, previously-delivered dedupes, policy skips, and
// errors grouped by metadata.ErrorCause. It never influences control
// flow; it only counts what other components already decided.
type Counters struct {
	mu sync.Mutex

	Harvested          int
	PreviouslyDelivered int
	Skipped            int
	ErrorsByCause      map[metadata.ErrorCause]int
}

func NewCounters() *Counters {
	return &Counters{ErrorsByCause: make(map[metadata.ErrorCause]int)}
}

func (c *Counters) IncHarvested() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Harvested++
}

func (c *Counters) IncPreviouslyDelivered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PreviouslyDelivered++
}

func (c *Counters) IncSkipped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Skipped++
}

func (c *Counters) IncError(cause metadata.ErrorCause) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ErrorsByCause[cause]++
}

// Summary renders the single summary line a well-formed run ends with
// per source.
func (c *Counters) Summary(source string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.ErrorsByCause {
		total += n
	}
	return fmt.Sprintf(
		"source=%s harvested=%d previously_downloaded=%d skipped=%d errors=%d",
		source, c.Harvested, c.PreviouslyDelivered, c.Skipped, total,
	)
}
