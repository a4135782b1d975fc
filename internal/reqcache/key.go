package reqcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives a cache key from a request value. The request is JSON encoded
// (map keys come out sorted) and hashed with SHA-256, so equal requests
// produce equal keys. The namespace keeps different request types apart.
func Key(namespace string, request any) (string, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s request for cache key: %w", namespace, err)
	}
	sum := sha256.Sum256(payload)
	return namespace + ":" + hex.EncodeToString(sum[:]), nil
}
