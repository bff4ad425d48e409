package filter

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Mode selects how Rules are interpreted.
type Mode string

const (
	ModeAllowAll  Mode = "allow_all"
	ModeBlacklist Mode = "blacklist"
	ModeWhitelist Mode = "whitelist"
)

// Rules lists the types and per-type properties a policy names.
type Rules struct {
	Mode       Mode                `yaml:"mode"`
	Types      []string            `yaml:"types"`
	Properties map[string][]string `yaml:"properties"`
}

func (r Rules) hasType(typeName string) bool {
	return slices.Contains(r.Types, typeName)
}

func (r Rules) hasProperty(typeName, property string) bool {
	return slices.Contains(r.Properties[typeName], property)
}

// LoadRules reads Rules from a YAML file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading filter rules: %w", err)
	}

	return ParseRules(data)
}

// ParseRules decodes Rules from YAML.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing filter rules: %w", err)
	}

	if r.Mode == "" {
		r.Mode = ModeBlacklist
	}

	return r, nil
}

// Build returns the Filter the rules describe.
func (r Rules) Build() (Filter, error) {
	switch r.Mode {
	case ModeAllowAll:
		return AllowAll{}, nil
	case ModeBlacklist:
		return NewBlacklist(r), nil
	case ModeWhitelist:
		return NewWhitelist(r), nil
	default:
		return nil, fmt.Errorf("unknown filter mode %q", r.Mode)
	}
}
