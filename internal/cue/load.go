package cue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mousetraptech/productionhub/internal/oscproto"
)

// yamlDoc mirrors the wire format from spec.md §6: a top-level cuelist
// mapping with name and cues.
type yamlDoc struct {
	CueList yamlCueList `yaml:"cuelist"`
}

type yamlCueList struct {
	Name string    `yaml:"name"`
	Cues []yamlCue `yaml:"cues"`
}

type yamlCue struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name"`
	Actions    []yamlAction `yaml:"actions"`
	PreWaitMs  int64       `yaml:"preWaitMs"`
	PostWaitMs int64       `yaml:"postWaitMs"`
	AutoFollow bool        `yaml:"autoFollow"`
}

type yamlAction struct {
	Address string `yaml:"address"`
	Args    []any  `yaml:"args"`
	DelayMs int64  `yaml:"delayMs"`
}

// LoadFile reads and parses a cue list YAML document from disk.
func LoadFile(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cue: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a cue list YAML document (spec.md §6). Validation errors
// identify the offending cue by its (possibly defaulted) id.
func Parse(data []byte) (*List, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cue: invalid YAML: %w", err)
	}

	out := &List{Name: doc.CueList.Name}
	seenIDs := make(map[string]bool)

	for i, yc := range doc.CueList.Cues {
		id := yc.ID
		if id == "" {
			id = fmt.Sprintf("cue-%d", i)
		}
		if seenIDs[id] {
			return nil, fmt.Errorf("cue: duplicate cue id %q", id)
		}
		seenIDs[id] = true

		name := yc.Name
		if name == "" {
			name = fmt.Sprintf("Cue %d", i+1)
		}

		if len(yc.Actions) == 0 {
			return nil, fmt.Errorf("cue %q: requires at least one action", id)
		}

		actions := make([]Action, 0, len(yc.Actions))
		for ai, ya := range yc.Actions {
			if ya.Address == "" {
				return nil, fmt.Errorf("cue %q: action %d missing address", id, ai)
			}
			args, err := normalizeYAMLArgs(ya.Args)
			if err != nil {
				return nil, fmt.Errorf("cue %q: action %d: %w", id, ai, err)
			}
			actions = append(actions, Action{
				Address: ya.Address,
				Args:    args,
				DelayMs: ya.DelayMs,
			})
		}

		out.Cues = append(out.Cues, Cue{
			ID:         id,
			Name:       name,
			PreWaitMs:  yc.PreWaitMs,
			PostWaitMs: yc.PostWaitMs,
			AutoFollow: yc.AutoFollow,
			Actions:    actions,
		})
	}

	return out, nil
}

func normalizeYAMLArgs(raw []any) ([]oscproto.Arg, error) {
	out := make([]oscproto.Arg, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case int:
			out = append(out, oscproto.Int(int32(t)))
		case float64:
			a, err := oscproto.Normalize(t)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		case string:
			out = append(out, oscproto.Str(t))
		case bool:
			out = append(out, oscproto.Bool(t))
		default:
			return nil, fmt.Errorf("unsupported arg value %v (%T)", v, v)
		}
	}
	return out, nil
}
