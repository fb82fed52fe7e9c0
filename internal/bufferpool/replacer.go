package bufferpool

import "github.com/novadb/novadb/internal/replacer"

// newDefaultReplacer is LRU, matching spec.md §4.1's default victim
// policy; WithReplacer swaps in internal/replacer.Clock or any other
// Replacer implementation.
func newDefaultReplacer() Replacer {
	return replacer.NewLRU()
}
