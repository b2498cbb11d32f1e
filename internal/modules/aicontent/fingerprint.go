package aicontent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/deepscholar/core/internal/models"
)

// Keys stripped from params before hashing. Identical questions from
// different users must land on the same cache slot.
var identityParamKeys = map[string]struct{}{
	"user_hash": {},
	"user_id":   {},
}

// Fingerprint derives the cache key of a generation request from its
// content type, query and parameters. Params are serialized with sorted
// keys so that map iteration order never changes the result.
func Fingerprint(contentType models.ContentType, query string, params models.JSONMap) string {
	payload := fmt.Sprintf("%d_%s_%s", contentType, query, canonicalParams(params))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ThreadFingerprint keys a discussion thread by its subject and
// parameters. User identity is handled separately by the thread store.
func ThreadFingerprint(relatedType models.RelatedType, params models.JSONMap) string {
	payload := fmt.Sprintf("%d_%s", relatedType, canonicalParams(params))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func canonicalParams(params models.JSONMap) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if _, skip := identityParamKeys[k]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(params[k])
		if err != nil {
			vb = []byte("null")
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return string(buf)
}
