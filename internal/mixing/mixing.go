// Package mixing combines several ordered lists into one playback order.
package mixing

import "fmt"

// Func merges per-source lists, given in declaration order.
type Func[T any] func(lists ...[]T) []T

// Names of the available mixing functions, as used in configuration.
const (
	NameChain       = "chain"
	NameZipEqually  = "zip_equally"
	DefaultFunction = NameChain
)

// Chain concatenates the lists in order.
func Chain[T any](lists ...[]T) []T {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]T, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// ZipEqually interleaves the lists round-robin. Every non-empty list is
// cycled from its start until it is as long as the longest one, so each
// list contributes once per round regardless of its size:
//
//	[A1] [B1 B2 B3] [C1 C2] -> A1 B1 C1 A1 B2 C2 A1 B3 C1
func ZipEqually[T any](lists ...[]T) []T {
	longest := 0
	nonEmpty := make([][]T, 0, len(lists))
	for _, l := range lists {
		if len(l) == 0 {
			continue
		}
		nonEmpty = append(nonEmpty, l)
		longest = max(longest, len(l))
	}

	out := make([]T, 0, longest*len(nonEmpty))
	for i := 0; i < longest; i++ {
		for _, l := range nonEmpty {
			out = append(out, l[i%len(l)])
		}
	}
	return out
}

// ByName resolves a configured mixing function name.
func ByName[T any](name string) (Func[T], error) {
	switch name {
	case "", NameChain:
		return Chain[T], nil
	case NameZipEqually:
		return ZipEqually[T], nil
	default:
		return nil, fmt.Errorf("unknown mixing function %q (want %s or %s)", name, NameChain, NameZipEqually)
	}
}
