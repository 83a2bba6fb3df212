// Package sequence provides domain contracts for document auto-numbering.
package sequence

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps between successful calls.
	// Slower, required for invoices and every issued document.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if the application restarts.
	// Only suitable for throwaway numbering (previews, imports).
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration for one document family.
type Config struct {
	// Prefix added to all numbers (e.g. "FAC", "DEV")
	Prefix string

	// IncludeYear adds the issue year to the formatted label.
	// The year is cosmetic only: the counter itself never resets at a
	// year boundary, so numbers stay unique across years too.
	IncludeYear bool

	// PadWidth is the minimum number width (default 4)
	PadWidth int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    4,
	}
}
