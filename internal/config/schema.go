package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaID = "https://github.com/kayleschmoyer/Fv2/schemas/config-v1.json"

// GenerateJSONSchema describes the config file format.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Config{})
	s.ID = schemaID
	s.Title = "FLIv2 installer configuration"
	s.Description = "Layered YAML or TOML settings for fv2"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

var (
	compileOnce sync.Once
	compiled    *sjsonschema.Schema
	compileErr  error
)

func compiledSchema() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := GenerateJSONSchema()
		if err != nil {
			compileErr = err
			return
		}
		doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schemaID, doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaID)
	})
	return compiled, compileErr
}

// ValidateDocument checks a raw YAML or TOML document against the schema.
func ValidateDocument(data []byte, format string) error {
	var generic map[string]any
	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), &generic); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
	}
	if generic == nil {
		return nil
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	raw, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("normalize document: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			var msgs []string
			for _, cause := range flattenValidationErrors(ve) {
				msgs = append(msgs, fmt.Sprintf("/%s: %v", strings.Join(cause.InstanceLocation, "/"), cause.ErrorKind))
			}
			return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
