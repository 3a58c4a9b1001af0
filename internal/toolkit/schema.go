package toolkit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache memoizes compiled schemas by their raw text, grounded on
// the teacher's pluginsdk.compileSchema sync.Map cache.
var schemaCache sync.Map

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateAgainstSchema validates a raw JSON params payload against a
// raw JSON Schema document. An empty schema always validates.
func ValidateAgainstSchema(schema json.RawMessage, data []byte) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}

	var decoded any
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode tool params: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tool params invalid: %w", err)
	}
	return nil
}
