package pattern

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Encode writes p as YAML.
func Encode(w io.Writer, p *Pattern) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode pattern: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML pattern and validates it, so the result can be handed
// straight to the engines.
func Decode(r io.Reader) (Pattern, error) {
	var p Pattern
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return Pattern{}, fmt.Errorf("decode pattern: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}
