package detector

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// MaxClasses bounds the class index accepted from a names map.
const MaxClasses = 4096

// classNames accepts both YOLO data.yaml spellings of `names:`, a plain list
// or an index→name map.
type classNames []string

func (c *classNames) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	case yaml.MappingNode:
		var m map[int]string
		if err := n.Decode(&m); err != nil {
			return err
		}
		idx := make([]int, 0, len(m))
		for k := range m {
			if k < 0 || k >= MaxClasses {
				return fmt.Errorf("class index %d outside [0,%d)", k, MaxClasses)
			}
			idx = append(idx, k)
		}
		sort.Ints(idx)
		var out []string
		if len(idx) > 0 {
			out = make([]string, idx[len(idx)-1]+1)
		}
		for _, k := range idx {
			out[k] = m[k]
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("names: expected list or map, got %s", n.Tag)
	}
}

type labelsFile struct {
	Names classNames `yaml:"names"`
}

// ParseLabels reads class names from data.yaml content. Gaps in an index map
// stay empty and render as class_<n>.
func ParseLabels(data []byte) ([]string, error) {
	var f labelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	return f.Names, nil
}

func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return ParseLabels(data)
}
