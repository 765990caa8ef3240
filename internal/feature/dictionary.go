package feature

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Property value kinds recorded in the data dictionary.
const (
	TypeNumber = "number"
	TypeText   = "text"
	TypeBool   = "boolean"
)

// Entry documents one output property.
type Entry struct {
	Key    string `yaml:"key" json:"key"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
	Unit   string `yaml:"unit,omitempty" json:"unit,omitempty"`
	Type   string `yaml:"type" json:"type"`
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Dictionary describes every property carried by the output features, in
// emission order: boundary attributes first, then each metric table's
// columns in registration order, then derived classifications.
type Dictionary struct {
	IDProperty string  `yaml:"id_property" json:"id_property"`
	Properties []Entry `yaml:"properties" json:"properties"`
}

// WriteDictionary writes the data dictionary to path as YAML.
func WriteDictionary(path string, d Dictionary) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "feature: marshal dictionary")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "feature: create output dir")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "feature: write %s", path)
	}
	return nil
}
