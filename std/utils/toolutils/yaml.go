package toolutils

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// ReadYaml decodes file into dest. Unknown keys are an error.
func ReadYaml(dest any, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", file, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f, yaml.Strict())
	if err = dec.Decode(dest); err != nil {
		return fmt.Errorf("unable to parse %s: %w", file, err)
	}
	return nil
}

// ParseYaml decodes data into dest. Unknown keys are an error.
func ParseYaml(dest any, data []byte) error {
	return yaml.UnmarshalWithOptions(data, dest, yaml.Strict())
}
