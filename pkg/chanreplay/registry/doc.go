// Package registry provides a generic thread-safe registry for values indexed by key.
//
// The registry backs the replay coordinator's vertex -> active task mapping,
// so beyond plain Register/Get it offers two compound operations that
// are atomic with respect to every other method:
//
//   - Swap stores a value and returns the one it displaced, so a caller never
//     loses an update between a lookup and an insert.
//   - DeleteIf removes an entry only when a predicate accepts its current
//     value, which lets a completion callback retire its own entry without
//     clobbering a newer one.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//
//	prev, loaded := r.Swap("one", 2) // prev == 1, loaded == true
//
//	removed := r.DeleteIf("one", func(v int) bool { return v == 1 })
//	// removed == false: the entry now holds 2
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. The Range method iterates
// over a snapshot of the registry, allowing mutations during iteration without
// affecting the iteration itself.
package registry
