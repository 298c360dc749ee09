// Package summarizer holds summary length presets shared by summarizer backends.
package summarizer

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is one named target length.
type Preset struct {
	Words       int    `yaml:"words"`
	Description string `yaml:"description"`
}

// Presets maps length names to target word counts.
type Presets struct {
	Default string            `yaml:"default"`
	Lengths map[string]Preset `yaml:"lengths"`
}

// LoadPresets parses the embedded preset table.
func LoadPresets() (*Presets, error) {
	return ParsePresets(presetsYAML)
}

// ParsePresets parses a preset table and checks that the default exists.
func ParsePresets(data []byte) (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse summary presets: %w", err)
	}
	if len(p.Lengths) == 0 {
		return nil, fmt.Errorf("summary presets: no lengths defined")
	}
	for name, preset := range p.Lengths {
		if preset.Words <= 0 {
			return nil, fmt.Errorf("summary preset %q: words must be positive", name)
		}
	}
	if _, ok := p.Lengths[p.Default]; !ok {
		return nil, fmt.Errorf("summary presets: default %q is not defined", p.Default)
	}
	return &p, nil
}

// TargetWords resolves a length name. Unknown or empty names use the default.
func (p *Presets) TargetWords(length string) int {
	if preset, ok := p.Lengths[strings.ToLower(strings.TrimSpace(length))]; ok {
		return preset.Words
	}
	return p.Lengths[p.Default].Words
}

// Names lists the known lengths in ascending word order.
func (p *Presets) Names() []string {
	names := make([]string, 0, len(p.Lengths))
	for name := range p.Lengths {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return p.Lengths[names[i]].Words < p.Lengths[names[j]].Words })
	return names
}

// Override returns a copy with defaultLength as the default (when it is a known length)
// and, when words is positive, the default preset resized to words.
func (p *Presets) Override(defaultLength string, words int) *Presets {
	out := &Presets{Default: p.Default, Lengths: make(map[string]Preset, len(p.Lengths))}
	for name, preset := range p.Lengths {
		out.Lengths[name] = preset
	}
	if name := strings.ToLower(strings.TrimSpace(defaultLength)); name != "" {
		if _, ok := out.Lengths[name]; ok {
			out.Default = name
		}
	}
	if words > 0 {
		preset := out.Lengths[out.Default]
		preset.Words = words
		out.Lengths[out.Default] = preset
	}
	return out
}
