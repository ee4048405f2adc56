// Package optionschema validates a model alias's provider-specific Options
// payload against a JSON Schema registered for that provider ID. Unknown
// provider IDs are accepted unvalidated, so third-party providers can be
// plugged in without touching this package.
//
// JSON Schema alone cannot express "embedding_dimensions is only valid for
// the embed task" (a schema is blind to the sibling ModelTask field), so
// that one constraint is checked separately after schema validation passes.
package optionschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/modelrterrs"
)

// Registry holds one compiled JSON Schema per provider ID.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles schemaJSON (a JSON Schema document as a string) and
// associates it with providerID. It panics on a malformed schema, since
// schemas are registered at process startup from static strings, not from
// untrusted input.
func (r *Registry) Register(providerID string, schemaJSON string) {
	compiler := jsonschema.NewCompiler()
	resourceURL := "mem://" + providerID + ".json"
	if err := compiler.AddResource(resourceURL, bytes.NewReader([]byte(schemaJSON))); err != nil {
		panic(fmt.Sprintf("optionschema: invalid schema for %s: %v", providerID, err))
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		panic(fmt.Sprintf("optionschema: compiling schema for %s: %v", providerID, err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[providerID] = schema
}

// Validate checks spec.Options against the schema registered for
// providerID. An unregistered provider ID always validates successfully.
func (r *Registry) Validate(providerID string, task api.ModelTask, options interface{}) error {
	r.mu.RLock()
	schema, ok := r.schemas[providerID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := schema.Validate(options); err != nil {
		return modelrterrs.Wrap(modelrterrs.KindConfig, fmt.Sprintf("invalid options for provider %q", providerID), err)
	}
	return checkEmbeddingDimensions(providerID, task, options)
}

// checkEmbeddingDimensions enforces the one constraint a JSON Schema cannot
// express on its own: embedding_dimensions, when present, is only valid for
// the embed task.
func checkEmbeddingDimensions(providerID string, task api.ModelTask, options interface{}) error {
	obj, ok := asObject(options)
	if !ok {
		return nil
	}
	if _, present := obj["embedding_dimensions"]; !present {
		return nil
	}
	if task != api.TaskEmbed {
		return modelrterrs.Newf(modelrterrs.KindConfig,
			"option 'embedding_dimensions' is only valid for embed tasks (provider %q)", providerID)
	}
	return nil
}

func asObject(options interface{}) (map[string]interface{}, bool) {
	switch v := options.(type) {
	case map[string]interface{}:
		return v, true
	case nil:
		return nil, false
	default:
		// Options may have been round-tripped through encoding/json.Number
		// or arrived as a raw struct; re-marshal/unmarshal to normalize.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, false
		}
		return m, true
	}
}
