package experiment

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/mallows/pkg/errors"
)

// Load reads a plan, choosing the format by extension: .toml, .yaml/.yml or
// .json. A JSON file may also hold a bare array of runs.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Plan{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "plan %s", path)
	}
	if err != nil {
		return Plan{}, err
	}
	plan, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Plan{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse plan %s", path)
	}
	return plan, nil
}

// Decode parses a plan in the format named by ext (".toml", ".yaml", ".yml"
// or ".json").
func Decode(data []byte, ext string) (Plan, error) {
	var plan Plan
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), &plan); err != nil {
			return Plan{}, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return Plan{}, err
		}
	case ".json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &plan.Runs); err != nil {
				return Plan{}, err
			}
		} else if err := json.Unmarshal(trimmed, &plan); err != nil {
			return Plan{}, err
		}
	default:
		return Plan{}, errors.New(errors.ErrCodeInvalidFormat, "unsupported plan format %q (want .toml, .yaml or .json)", ext)
	}
	for i := range plan.Runs {
		plan.Runs[i].normalize()
	}
	return plan, nil
}

// Save writes plan to path in the format named by its extension.
func Save(path string, plan Plan) error {
	data, err := Encode(plan, filepath.Ext(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Encode serializes plan in the format named by ext.
func Encode(plan Plan, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(plan); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case ".yaml", ".yml":
		return yaml.Marshal(plan)
	case ".json":
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported plan format %q (want .toml, .yaml or .json)", ext)
	}
}
