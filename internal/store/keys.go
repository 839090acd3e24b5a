package store

import "sync"

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix, "idx:", index name and a 25 byte job id fit comfortably.
		return make([]byte, 0, 128)
	},
}

// buildKey constructs a database key from prefix and suffix using a pooled buffer.
// Callers MUST call releaseKey when done with the key.
//
// Usage:
//
//	key := buildKey(jobPrefix, jobID)
//	defer releaseKey(key)
//	item, err := txn.Get(key)
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// indexKey constructs prefix + "idx:" + name + ":" + value + ":" + id.
// The result is freshly allocated because badger keeps keys passed to Set.
func indexKey(prefix, name, value, id string) []byte {
	key := make([]byte, 0, len(prefix)+len(name)+len(value)+len(id)+6)
	key = append(key, prefix...)
	key = append(key, "idx:"...)
	key = append(key, name...)
	key = append(key, ':')
	key = append(key, value...)
	key = append(key, ':')
	key = append(key, id...)
	return key
}

// indexPrefix is indexKey without the trailing id.
func indexPrefix(prefix, name, value string) []byte {
	return []byte(prefix + "idx:" + name + ":" + value + ":")
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}
