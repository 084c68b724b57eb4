// Package store defines the document persistence contract used for
// consumption history and window assignments. Implementations replace
// whole documents; there is no cross-run transactional guarantee.
package store

import "errors"

// ErrNotFound reports that no document exists under the given key.
var ErrNotFound = errors.New("document not found")

// Store loads and saves JSON-compatible documents by key.
type Store interface {
	Load(key string, doc any) error
	Save(key string, doc any) error
}
