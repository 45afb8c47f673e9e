// Package identity turns free-text artwork titles and artists into a
// canonical, hashable identity used as the shared cache key, and performs
// exact and approximate identity matching.
//
// The resolver is stateless: all functions are pure over their inputs, and
// identical normalized inputs always produce the identical hash.
package identity
