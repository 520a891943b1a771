package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed data/catalogue.schema.json
var schemaDocument []byte

const schemaURL = "https://github.com/nao1215/privacygap/catalogue.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaDocument)); err != nil {
		return nil, fmt.Errorf("failed to add catalogue schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// validateSchema checks a YAML catalogue document against the embedded schema.
// YAML is converted to JSON first so that numbers are validated as JSON numbers.
func validateSchema(doc []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var raw any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidCatalogue)
	}

	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}
	return nil
}
