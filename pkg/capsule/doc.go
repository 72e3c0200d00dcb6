// Package capsule provides the content bundle assembled by authors
// and the codec that seals it for storage.
package capsule
