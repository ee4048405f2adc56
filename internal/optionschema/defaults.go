package optionschema

// RegisterDefaults registers the schemas for the provider IDs this
// repository ships a concrete backend for: local/vec, remote/bedrock and
// remote/openai. No other provider ID gets a schema here.
func RegisterDefaults(r *Registry) {
	r.Register("local/vec", `{
		"type": ["object", "null"],
		"additionalProperties": false,
		"properties": {
			"dimensions": {"type": "integer", "minimum": 1}
		}
	}`)

	r.Register("remote/bedrock", `{
		"type": ["object", "null"],
		"additionalProperties": false,
		"properties": {
			"region": {"type": "string"},
			"embedding_dimensions": {"type": "integer", "minimum": 1},
			"access_key_id_env": {"type": "string"},
			"secret_access_key_env": {"type": "string"}
		}
	}`)

	r.Register("remote/openai", `{
		"type": ["object", "null"],
		"additionalProperties": false,
		"properties": {
			"api_key_env": {"type": "string"},
			"organization": {"type": "string"}
		}
	}`)
}
