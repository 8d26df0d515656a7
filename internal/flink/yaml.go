package flink

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromYAML parses a YAML document into a Value. Like ParseJSON, mapping keys keep
// source order and repeated keys are preserved.
func FromYAML(data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 {
		return Value{}, fmt.Errorf("parse yaml: empty document")
	}
	v, err := FromYAMLNode(&doc)
	if err != nil {
		return Value{}, fmt.Errorf("parse yaml: %w", err)
	}
	return v, nil
}

// FromYAMLNode converts a decoded yaml.Node tree into a Value using the node tags.
func FromYAMLNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromYAMLNode(n.Content[0])

	case yaml.AliasNode:
		if n.Alias == nil {
			return Value{}, fmt.Errorf("line %d: dangling alias", n.Line)
		}
		return FromYAMLNode(n.Alias)

	case yaml.MappingNode:
		obj := Value{Kind: KindObject}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, val := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: non-scalar mapping key", k.Line)
			}
			if k.Tag == "!!merge" {
				return Value{}, fmt.Errorf("line %d: merge keys are not supported", k.Line)
			}
			v, err := FromYAMLNode(val)
			if err != nil {
				return Value{}, err
			}
			obj.Members = append(obj.Members, Member{Key: k.Value, Value: v})
		}
		return obj, nil

	case yaml.SequenceNode:
		arr := Value{Kind: KindArray}
		for _, item := range n.Content {
			v, err := FromYAMLNode(item)
			if err != nil {
				return Value{}, err
			}
			arr.Items = append(arr.Items, v)
		}
		return arr, nil

	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func yamlScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		// Plain decimal first, 0x/0o forms go through the library.
		lit := strings.ReplaceAll(n.Value, "_", "")
		if v, err := numberValue(lit); err == nil && v.Kind != KindFloat {
			return v, nil
		}
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i), nil
		}
		var u uint64
		if err := n.Decode(&u); err == nil {
			return Uint(u), nil
		}
		return Value{}, fmt.Errorf("line %d: invalid integer %q", n.Line, n.Value)
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Float(f), nil
	case "!!str", "!!timestamp", "!!binary":
		return String(n.Value), nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported tag %s", n.Line, n.ShortTag())
}
