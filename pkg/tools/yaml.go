package tools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// UnmarshalFileYaml reads filename and decodes it into v, the way
// server.LoadOptions loads a server.Options from disk before struct-tag
// defaults and functional options are applied on top.
func UnmarshalFileYaml(filename string, v interface{}) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}

	return yaml.Unmarshal(content, v)
}
