// Package cache stores rendered reports so unchanged documents are not
// reprocessed on repeated batch runs. Keys bind the document text to the
// dictionary and rule configuration, so editing either invalidates the
// entry naturally.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the storage contract shared by the memory, disk and layered
// implementations.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the document text and a fingerprint of the
// matcher and rule configuration.
func Key(text, fingerprint string) string {
	hash := sha256.New()
	hash.Write([]byte(fingerprint))
	hash.Write([]byte{0})
	hash.Write([]byte(text))
	return "clinform:v1:" + hex.EncodeToString(hash.Sum(nil))
}
