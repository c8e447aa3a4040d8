package yml

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Root returns the content node of a document node, or n itself.
func (n *Node) Root() *Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return (*Node)(n.Content[0])
	}
	return n
}

// Lookup returns the value of the named key of a mapping node, or nil.
func (n *Node) Lookup(name string) *Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if strings.EqualFold(n.Content[i].Value, name) {
			return (*Node)(n.Content[i+1])
		}
	}
	return nil
}

func (n *Node) Items(callback func(index int, node *Node) error) error {
	for i := 0; i < len(n.Content); i++ {
		if err := callback(i, (*Node)(n.Content[i])); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping node at line %d", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := callback(n.Content[i].Value, (*Node)(n.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// Scalars calls fn for every scalar value below n. Mapping keys are skipped.
func (n *Node) Scalars(fn func(node *Node)) {
	switch n.Kind {
	case yaml.ScalarNode:
		fn(n)
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			(*Node)(n.Content[i]).Scalars(fn)
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range n.Content {
			(*Node)(child).Scalars(fn)
		}
	case yaml.AliasNode:
		// aliases share the anchored node, which is visited where it is defined
	}
}

func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		return n.Root().Interface()
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!bool":
			return parseBool(n.Value)
		case "!!null":
			return nil
		case "!!float":
			return parseFloat(n.Value)
		case "!!int":
			return parseInt(n.Value)
		default:
			return n.Value
		}
	case yaml.MappingNode:
		var aMap = make(map[string]interface{})
		for i := 0; i+1 < len(n.Content); i += 2 {
			aMap[n.Content[i].Value] = (*Node)(n.Content[i+1]).Interface()
		}
		return aMap
	case yaml.SequenceNode:
		var aSlice = make([]interface{}, 0, len(n.Content))
		for i := 0; i < len(n.Content); i++ {
			aSlice = append(aSlice, (*Node)(n.Content[i]).Interface())
		}
		return aSlice
	}
	return nil
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true"
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(value string) int {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return i
}
