package api

import "testing"

func specWithOptions(opts interface{}) ModelAliasSpec {
	return ModelAliasSpec{
		Alias:      "embed/test",
		Task:       TaskEmbed,
		ProviderID: "local/vec",
		ModelID:    "test-model",
		Options:    opts,
	}
}

func TestModelRuntimeKeySameOptionsSameKey(t *testing.T) {
	a := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"dimensions": 256.0}))
	b := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"dimensions": 256.0}))
	if a != b {
		t.Fatalf("expected identical options to hash to the same key, got %v vs %v", a, b)
	}
}

func TestModelRuntimeKeyKeyOrderIndependent(t *testing.T) {
	a := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"a": 1.0, "b": 2.0}))
	b := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"b": 2.0, "a": 1.0}))
	if a.VariantHash != b.VariantHash {
		t.Fatalf("expected object key order not to affect the variant hash, got %q vs %q", a.VariantHash, b.VariantHash)
	}
}

func TestModelRuntimeKeyDifferentOptionsDifferentKey(t *testing.T) {
	a := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"dimensions": 256.0}))
	b := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"dimensions": 512.0}))
	if a.VariantHash == b.VariantHash {
		t.Fatal("expected different options to hash to different variant hashes")
	}
}

func TestModelRuntimeKeyDiscriminatesValueKind(t *testing.T) {
	numeric := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"v": 0.0}))
	str := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"v": "0"}))
	if numeric.VariantHash == str.VariantHash {
		t.Fatal("expected the number 0 and the string \"0\" to hash differently")
	}
}

func TestModelRuntimeKeyNilOptionsStable(t *testing.T) {
	a := NewModelRuntimeKey(specWithOptions(nil))
	b := NewModelRuntimeKey(specWithOptions(nil))
	if a.VariantHash != b.VariantHash {
		t.Fatal("expected nil options to hash identically across calls")
	}
}

func TestModelRuntimeKeyIncludesRevision(t *testing.T) {
	rev1, rev2 := "v1", "v2"
	spec1 := specWithOptions(nil)
	spec1.Revision = &rev1
	spec2 := specWithOptions(nil)
	spec2.Revision = &rev2

	a := NewModelRuntimeKey(spec1)
	b := NewModelRuntimeKey(spec2)
	if a == b {
		t.Fatal("expected different revisions to produce different keys")
	}
}

func TestModelRuntimeKeyStringIsStable(t *testing.T) {
	k := NewModelRuntimeKey(specWithOptions(map[string]interface{}{"dimensions": 256.0}))
	if k.String() != k.String() {
		t.Fatal("expected String() to be stable across calls")
	}
}
