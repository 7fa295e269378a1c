package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAML parses a document whose top level keys are sections and whose
// second level keys are options:
//
//	foc:
//	  mode: current
//	  duty_max: 0.95
//	pwm_output:
//	  channels: [0, 1, 2]
//
// Scalar values keep their source text. Sequences of scalars become comma
// separated lists. Section order follows the document.
func LoadYAML(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c := New()
	if len(doc.Content) == 0 {
		return c, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: line %d: top level must be a mapping of sections", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, body := root.Content[i].Value, root.Content[i+1]
		options := make(map[string]string)
		switch {
		case body.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(body.Content); j += 2 {
				key, val := body.Content[j], body.Content[j+1]
				s, err := yamlValue(val)
				if err != nil {
					return nil, fmt.Errorf("config: section %q option %q: %w", name, key.Value, err)
				}
				options[key.Value] = s
			}
		case body.Kind == yaml.ScalarNode && body.ShortTag() == "!!null":
		default:
			return nil, fmt.Errorf("config: line %d: section %q must be a mapping", body.Line, name)
		}
		c.addSection(name, options)
	}
	return c, nil
}

func yamlValue(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return "", nil
		}
		return n.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("line %d: lists may only hold scalars", item.Line)
			}
			parts = append(parts, item.Value)
		}
		return strings.Join(parts, ", "), nil
	}
	return "", fmt.Errorf("line %d: unsupported value", n.Line)
}
