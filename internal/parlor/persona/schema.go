package persona

import (
	_ "embed"
	"encoding/json"
	"errors"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed persona.schema.json
var schemaSource string

var documentSchema = jsonschema.MustCompileString("https://parlor.local/schemas/persona.json", schemaSource)

// DecodeDocument validates a raw JSON persona document against the embedded
// schema and decodes it. Any failure wraps ErrInvalidConfig.
func DecodeDocument(raw []byte) (*Config, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, oops.In("persona").Wrapf(errors.Join(ErrInvalidConfig, err), "parse document")
	}
	if err := documentSchema.Validate(doc); err != nil {
		return nil, oops.In("persona").Wrapf(errors.Join(ErrInvalidConfig, err), "schema")
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, oops.In("persona").Wrapf(errors.Join(ErrInvalidConfig, err), "decode document")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
