package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ModelRuntimeKey is the deduplication key for a loaded model: two aliases
// that share the same provider, model ID, revision, and options hash to the
// same key and therefore share one loaded model instance.
type ModelRuntimeKey struct {
	ProviderID  string
	ModelID     string
	Revision    string
	VariantHash string
}

// String renders the key in a stable, human-readable form suitable for
// logging and map keys.
func (k ModelRuntimeKey) String() string {
	return fmt.Sprintf("%s::%s::%s::%s", k.ProviderID, k.ModelID, k.Revision, k.VariantHash)
}

// NewModelRuntimeKey derives the runtime key for an alias spec. The variant
// hash is computed over the spec's Options value using hashJSONValue, so two
// specs with structurally equal options (regardless of object-key order)
// dedup to the same key, and two specs with different option shapes never
// collide.
func NewModelRuntimeKey(spec ModelAliasSpec) ModelRuntimeKey {
	revision := ""
	if spec.Revision != nil {
		revision = *spec.Revision
	}
	return ModelRuntimeKey{
		ProviderID:  spec.ProviderID,
		ModelID:     spec.ModelID,
		Revision:    revision,
		VariantHash: hashJSONValue(spec.Options),
	}
}

// Discriminant bytes prefixed to each JSON value kind before hashing, so
// that values of different kinds (e.g. the number 0 vs the string "0")
// never collide even if their serialized forms coincide.
const (
	discNull byte = iota
	discBool
	discNumber
	discString
	discArray
	discObject
)

// hashJSONValue computes a deterministic SHA-256 hex digest of an arbitrary
// decoded-JSON value (as produced by encoding/json's default decoding:
// nil, bool, float64, json.Number, string, []interface{}, map[string]interface{}).
// Object keys are sorted before hashing so key order never affects the
// result; arrays preserve their given order since order is significant.
func hashJSONValue(v interface{}) string {
	h := sha256.New()
	writeJSONValue(h, v)
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSONValue(h interface{ Write([]byte) (int, error) }, v interface{}) {
	switch val := v.(type) {
	case nil:
		h.Write([]byte{discNull})
	case bool:
		h.Write([]byte{discBool})
		if val {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case json.Number:
		h.Write([]byte{discNumber})
		h.Write([]byte(canonicalNumber(string(val))))
	case float64:
		h.Write([]byte{discNumber})
		h.Write([]byte(canonicalNumber(formatFloat(val))))
	case string:
		h.Write([]byte{discString})
		h.Write([]byte(val))
	case []interface{}:
		h.Write([]byte{discArray})
		for _, elem := range val {
			writeJSONValue(h, elem)
		}
	case map[string]interface{}:
		h.Write([]byte{discObject})
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			writeJSONValue(h, val[k])
		}
	default:
		// Unreachable for values produced by encoding/json decoding; fall
		// back to a Go-syntax representation rather than panicking.
		h.Write([]byte{discString})
		h.Write([]byte(fmt.Sprintf("%v", val)))
	}
}

// canonicalNumber normalizes a decimal number string so that "1", "1.0" and
// "1e0" all hash identically: it parses to float64 and re-renders in a
// fixed, minimal form.
func canonicalNumber(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return formatFloat(f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
