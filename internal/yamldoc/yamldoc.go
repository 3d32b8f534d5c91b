// Package yamldoc is the YAML round-trip Store. It loads and dumps YAML
// documents without losing comments, key order, or scalar quoting style,
// and exposes a pure ApplyPatch for key/value mutation of an in-memory
// document. Every asset body and template in Onyo passes through here.
package yamldoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/onyo-org/onyo/internal/onyoerr"
	"gopkg.in/yaml.v3"
)

// Document wraps a parsed YAML document node tree. Its top level must be
// a mapping (spec §6, "Asset file format").
type Document struct {
	root *yaml.Node // DocumentNode; root.Content[0] is the mapping node
}

// Empty returns a Document representing an empty mapping — the seed for
// the "empty" template, which ships as a lone "---".
func Empty() *Document {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}}
	return &Document{root: doc}
}

// Load parses data preserving insertion order, comments, and scalar
// style. It fails with onyoerr.MalformedDocument if data is not
// well-formed YAML, or if the top level is not a mapping.
func Load(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, onyoerr.Wrap(onyoerr.MalformedDocument, "load", "", err)
	}

	// An empty input (or one that is only "---") unmarshals to a
	// zero-value Node; normalise it to an empty document/mapping pair.
	if root.Kind == 0 {
		return Empty(), nil
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return Empty(), nil
	}

	mapping := root.Content[0]
	if mapping.Kind == yaml.ScalarNode && mapping.Tag == "!!null" {
		mapping.Kind = yaml.MappingNode
		mapping.Tag = "!!map"
		mapping.Value = ""
		mapping.Content = nil
	}
	if mapping.Kind != yaml.MappingNode {
		return nil, onyoerr.New(onyoerr.MalformedDocument, "top level is not a mapping")
	}

	return &Document{root: &root}, nil
}

// Dump renders document with a leading "---" document marker. dump(load(x))
// is identity on well-formed input, up to trailing whitespace.
func Dump(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc.root); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close encoder: %w", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("---")) {
		out = append([]byte("---\n"), out...)
	}
	return out, nil
}

// Clone deep-copies document so mutation of the copy never affects the
// original — needed by the Transaction Engine's copy-on-write overlay.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Content = make([]*yaml.Node, len(n.Content))
	for i, c := range n.Content {
		cp.Content[i] = cloneNode(c)
	}
	return &cp
}

// mapping returns the top-level mapping node.
func (d *Document) mapping() *yaml.Node { return d.root.Content[0] }

// Patch describes a batch of dotted-key mutations to apply atomically.
type Patch struct {
	Set               map[string]any
	Unset             []string
	CreateIntermediate bool // create intermediate mappings for dotted Set keys
	ReplaceScalar      bool // allow Set to overwrite a mapping with a scalar
}

// ApplyPatch returns a new Document with patch applied on top of document.
// Dotted keys create intermediate mappings only when patch.CreateIntermediate
// is set; unsetting a missing key is a no-op; setting a scalar where a
// mapping exists is an error unless patch.ReplaceScalar is set.
func ApplyPatch(document *Document, patch Patch) (*Document, error) {
	out := document.Clone()

	for _, key := range patch.Unset {
		unsetPath(out.mapping(), splitDotted(key))
	}

	for key, value := range patch.Set {
		if err := setPath(out.mapping(), splitDotted(key), value, patch.CreateIntermediate, patch.ReplaceScalar); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func splitDotted(key string) []string {
	return strings.Split(key, ".")
}

// findMapEntry returns the value node for key within mapping (a
// yaml.MappingNode) and its index in Content, or nil, -1.
func findMapEntry(mapping *yaml.Node, key string) (*yaml.Node, int) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1], i
		}
	}
	return nil, -1
}

func setMapEntry(mapping *yaml.Node, key string, value *yaml.Node) {
	if existing, idx := findMapEntry(mapping, key); existing != nil {
		mapping.Content[idx+1] = value
		return
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	mapping.Content = append(mapping.Content, keyNode, value)
}

func setPath(mapping *yaml.Node, path []string, value any, createIntermediate, replaceScalar bool) error {
	head := path[0]
	if len(path) == 1 {
		existing, _ := findMapEntry(mapping, head)
		if existing != nil && existing.Kind == yaml.MappingNode && !replaceScalar && isScalarValue(value) {
			return onyoerr.New(onyoerr.MalformedDocument, fmt.Sprintf("cannot set scalar over mapping at %q without replace", head))
		}
		setMapEntry(mapping, head, scalarOrNode(value, existing))
		return nil
	}

	child, _ := findMapEntry(mapping, head)
	if child == nil {
		if !createIntermediate {
			return onyoerr.New(onyoerr.MalformedDocument, fmt.Sprintf("intermediate key %q does not exist", head))
		}
		child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMapEntry(mapping, head, child)
	}
	if child.Kind != yaml.MappingNode {
		if !createIntermediate {
			return onyoerr.New(onyoerr.MalformedDocument, fmt.Sprintf("key %q is not a mapping", head))
		}
		child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMapEntry(mapping, head, child)
	}
	return setPath(child, path[1:], value, createIntermediate, replaceScalar)
}

func unsetPath(mapping *yaml.Node, path []string) {
	head := path[0]
	if len(path) == 1 {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == head {
				mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
				return
			}
		}
		return // missing key: no-op
	}
	child, _ := findMapEntry(mapping, head)
	if child == nil || child.Kind != yaml.MappingNode {
		return
	}
	unsetPath(child, path[1:])
}

func isScalarValue(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

// scalarOrNode builds a *yaml.Node for value. If existing is a scalar
// node of a compatible shape, its style is preserved so quoting is not
// disturbed by an unrelated key's mutation.
func scalarOrNode(value any, existing *yaml.Node) *yaml.Node {
	n := valueToNode(value)
	if existing != nil && existing.Kind == yaml.ScalarNode && n.Kind == yaml.ScalarNode {
		n.Style = existing.Style
	}
	return n
}

func valueToNode(value any) *yaml.Node {
	var n yaml.Node
	if err := n.Encode(value); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprint(value)}
	}
	return &n
}

// Kind classifies a Value for dotted-key access and query output.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

// Value is the dynamic sum type over an asset body's parsed content:
// Scalar(string|int|float|bool) | Sequence(list<Value>) |
// Mapping(ordered-map<string,Value>). Dotted-key access is a plain
// traversal over this tree, never reflection.
type Value struct {
	Kind    Kind
	Scalar  string // raw scalar text as written
	Tag     string // yaml tag, e.g. "!!str", "!!int", "!!bool", "!!null"
	Items   []Value
	Keys    []string
	Mapping map[string]Value
}

// IsUnset reports whether v represents a missing key (the zero Value).
func (v Value) IsUnset() bool { return v.Kind == KindNull && v.Tag == "" }

func nodeToValue(n *yaml.Node) Value {
	if n == nil {
		return Value{}
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return Value{Kind: KindNull, Tag: "!!null"}
		}
		return Value{Kind: KindScalar, Scalar: n.Value, Tag: n.Tag}
	case yaml.SequenceNode:
		items := make([]Value, len(n.Content))
		for i, c := range n.Content {
			items[i] = nodeToValue(c)
		}
		return Value{Kind: KindSequence, Items: items}
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		m := make(map[string]Value, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			keys = append(keys, k)
			m[k] = nodeToValue(n.Content[i+1])
		}
		return Value{Kind: KindMapping, Keys: keys, Mapping: m}
	default:
		return Value{Kind: KindNull}
	}
}

// Get performs a dotted-key lookup against document's body. The zero
// Value (KindNull, no tag) is returned for a missing key.
func (d *Document) Get(dottedKey string) Value {
	return getPath(d.mapping(), splitDotted(dottedKey))
}

func getPath(mapping *yaml.Node, path []string) Value {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return Value{}
	}
	child, _ := findMapEntry(mapping, path[0])
	if child == nil {
		return Value{}
	}
	if len(path) == 1 {
		return nodeToValue(child)
	}
	return getPath(child, path[1:])
}

// Keys returns the top-level keys of document's body, in document order.
func (d *Document) Keys() []string {
	m := d.mapping()
	out := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		out = append(out, m.Content[i].Value)
	}
	return out
}

// Has reports whether dottedKey resolves to a present value.
func (d *Document) Has(dottedKey string) bool {
	return !d.Get(dottedKey).IsUnset()
}
