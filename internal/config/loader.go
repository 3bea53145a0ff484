package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// visionConfigSchema validates the map produced by VisionConfig.ToMap()
// before it is handed to a detection provider's Initialize. It accepts
// additional properties so provider-private keys pass through untouched,
// matching the "silently ignore unknown keys" contract.
const visionConfigSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": true,
  "properties": {
    "confidence_threshold": {"type": "number", "minimum": 0, "maximum": 1},
    "device": {"type": "string", "enum": ["cpu", "cuda", "mps"]},
    "input_resolution": {"type": "integer", "minimum": 1},
    "model_path": {"type": "string"}
  }
}`

// compiledVisionConfigSchema is compiled once at package init and reused
// by every call to ValidateProviderConfig.
var compiledVisionConfigSchema = mustCompileSchema(visionConfigSchema)

func mustCompileSchema(schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("vision-config.json", bytes.NewReader([]byte(schema))); err != nil {
		panic(fmt.Sprintf("config: invalid embedded vision config schema: %v", err))
	}
	compiled, err := compiler.Compile("vision-config.json")
	if err != nil {
		panic(fmt.Sprintf("config: failed to compile vision config schema: %v", err))
	}
	return compiled
}

// ValidateProviderConfig validates a detection-provider configuration map
// against the embedded schema before it is passed to Provider.Initialize.
func ValidateProviderConfig(cfg map[string]any) error {
	if err := compiledVisionConfigSchema.Validate(cfg); err != nil {
		return fmt.Errorf("provider config failed schema validation: %w", err)
	}
	return nil
}

// LoadIntersectionConfig reads a YAML intersection configuration file and
// merges it onto DefaultIntersectionConfig, then validates the result.
func LoadIntersectionConfig(path string) (IntersectionConfig, error) {
	cfg := DefaultIntersectionConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return IntersectionConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return IntersectionConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return IntersectionConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
