// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML document into a tree. An empty document
// yields an empty tree; a document whose root is not a mapping is an
// error.
func ParseYAML(data []byte) (*Tree, error) {
	result := New()
	if err := yaml.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return result, nil
}

// UnmarshalYAML implements yaml.Unmarshaler, preserving the key order
// of the document. Aliases are resolved and "<<" merge keys are
// expanded in place.
func (t *Tree) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping, found %s", node.Line, kindName(node.Kind))
	}
	if t.values == nil {
		t.values = make(map[string]any)
	}
	return t.decodeMapping(node)
}

func (t *Tree) decodeMapping(node *yaml.Node) error {
	for index := 0; index+1 < len(node.Content); index += 2 {
		keyNode, valueNode := node.Content[index], node.Content[index+1]
		if keyNode.Tag == "!!merge" {
			if err := t.mergeNode(valueNode); err != nil {
				return err
			}
			continue
		}
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
		}
		value, err := decodeNode(valueNode)
		if err != nil {
			return err
		}
		t.Set(keyNode.Value, value)
	}
	return nil
}

// mergeNode applies a YAML merge key. Explicit keys of the enclosing
// mapping that were already set are not overwritten.
func (t *Tree) mergeNode(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	var sources []*yaml.Node
	switch node.Kind {
	case yaml.MappingNode:
		sources = []*yaml.Node{node}
	case yaml.SequenceNode:
		sources = node.Content
	default:
		return fmt.Errorf("line %d: merge value must be a mapping or a sequence of mappings", node.Line)
	}
	for _, source := range sources {
		merged := New()
		if err := merged.UnmarshalYAML(source); err != nil {
			return err
		}
		for _, key := range merged.keys {
			if !t.Has(key) {
				t.Set(key, merged.values[key])
			}
		}
	}
	return nil
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	case yaml.MappingNode:
		child := New()
		if err := child.decodeMapping(node); err != nil {
			return nil, err
		}
		return child, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, element := range node.Content {
			value, err := decodeNode(element)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return Normalize(value), nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node %s", node.Line, kindName(node.Kind))
	}
}

// MarshalYAML implements yaml.Marshaler, emitting keys in tree order.
func (t *Tree) MarshalYAML() (any, error) {
	return encodeNode(t)
}

func encodeNode(value any) (*yaml.Node, error) {
	switch typed := value.(type) {
	case *Tree:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if typed == nil {
			return node, nil
		}
		for _, key := range typed.keys {
			child, err := encodeNode(typed.values[key])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				child,
			)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, element := range typed {
			child, err := encodeNode(element)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(value); err != nil {
			return nil, err
		}
		return node, nil
	}
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return fmt.Sprintf("kind(%d)", kind)
	}
}
