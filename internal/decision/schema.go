package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// decisionSchema is the shape contract enforced after coercion. Numeric
// fields admit strings because models quote numbers; UnmarshalJSON converts
// them. Extra fields are allowed and ignored.
const decisionSchema = `{
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"type": "string", "minLength": 1},
    "symbol": {"type": "string"},
    "quantity": {"type": ["number", "string"]},
    "confidence": {"type": ["number", "string"]},
    "reasoning": {"type": "string"}
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledDecisionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("decision.json")
	})
	return schemaCompiled, schemaErr
}

func validateDecisionDoc(raw string) error {
	schema, err := compiledDecisionSchema()
	if err != nil {
		return fmt.Errorf("decision schema unavailable: %w", err)
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("decision schema: %w", err)
	}
	return nil
}
