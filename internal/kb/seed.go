package kb

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/reltime"
)

//go:embed seed.yaml
var defaultSeed []byte

// DefaultSeed returns the embedded seed document.
func DefaultSeed() []byte {
	return defaultSeed
}

// Seed is the declarative description a KnowledgeBase is generated from.
type Seed struct {
	MaxCardinality int            `yaml:"maxCardinality"`
	Units          []SeedUnit     `yaml:"units"`
	Templates      []SeedTemplate `yaml:"templates"`
	Phrases        []SeedPhrase   `yaml:"phrases"`
}

// SeedUnit lists the surface forms of one unit.
type SeedUnit struct {
	Frame string   `yaml:"frame"`
	Scale int      `yaml:"scale"`
	Forms []string `yaml:"forms"`
}

// SeedTemplate is a phrase pattern with {n} and {u} placeholders.
type SeedTemplate struct {
	Pattern string `yaml:"pattern"`
	Tense   string `yaml:"tense"`
}

// SeedPhrase is a fixed phrase with an explicit meaning.
type SeedPhrase struct {
	Text        string `yaml:"text"`
	Cardinality int    `yaml:"cardinality"`
	Frame       string `yaml:"frame"`
	Tense       string `yaml:"tense"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	if seed.MaxCardinality <= 0 {
		return nil, fmt.Errorf("parsing seed: maxCardinality must be positive, got %d", seed.MaxCardinality)
	}
	return &seed, nil
}

// LoadSeedFile reads and decodes a seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

// FromSeed expands a seed into a KnowledgeBase.
func FromSeed(seed *Seed) (*KnowledgeBase, error) {
	b := NewBuilder()
	type form struct {
		text string
		unit Unit
	}
	var forms []form
	for _, su := range seed.Units {
		frame, err := reltime.ParseFrame(su.Frame)
		if err != nil {
			return nil, fmt.Errorf("unit %v: %w", su.Forms, err)
		}
		unit := Unit{Frame: frame, Scale: max(su.Scale, 1)}
		for _, f := range su.Forms {
			b.AddUnit(f, unit)
			forms = append(forms, form{text: f, unit: unit})
		}
	}

	for _, tpl := range seed.Templates {
		tense, err := reltime.ParseTense(tpl.Tense)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.Pattern, err)
		}
		if !strings.Contains(tpl.Pattern, "{n}") || !strings.Contains(tpl.Pattern, "{u}") {
			return nil, fmt.Errorf("template %q: missing {n} or {u} placeholder", tpl.Pattern)
		}
		for n := 1; n <= seed.MaxCardinality; n++ {
			num := strconv.Itoa(n)
			withN := strings.ReplaceAll(tpl.Pattern, "{n}", num)
			for _, f := range forms {
				slot := Slot{Cardinality: n * f.unit.Scale, Frame: f.unit.Frame, Tense: tense}
				if err := b.AddText(strings.ReplaceAll(withN, "{u}", f.text), slot); err != nil {
					return nil, fmt.Errorf("template %q: %w", tpl.Pattern, err)
				}
			}
		}
	}

	for _, sp := range seed.Phrases {
		frame, err := reltime.ParseFrame(sp.Frame)
		if err != nil {
			return nil, fmt.Errorf("phrase %q: %w", sp.Text, err)
		}
		tense, err := reltime.ParseTense(sp.Tense)
		if err != nil {
			return nil, fmt.Errorf("phrase %q: %w", sp.Text, err)
		}
		if err := b.AddText(sp.Text, Slot{Cardinality: sp.Cardinality, Frame: frame, Tense: tense}); err != nil {
			return nil, fmt.Errorf("phrase %q: %w", sp.Text, err)
		}
	}
	return b.Build(), nil
}
