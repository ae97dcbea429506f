// Package extract turns structured JSON documents into text and chunks.
//
// Documents are parsed into a small closed tree of Nodes. Walkers dispatch on
// Node.Kind instead of inspecting Go types, and records keep their source key
// order so output follows document order.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"ragtutor/internal/domain"
)

// Kind is the shape of a Node.
type Kind int

const (
	KindScalar Kind = iota
	KindRecord
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRecord:
		return "record"
	case KindSequence:
		return "sequence"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Field is one key of a record.
type Field struct {
	Key   string
	Value *Node
}

// Node is a parsed JSON value. Scalar holds a string, json.Number, bool or
// nil in Value; Record holds Fields in source order; Sequence holds Items.
type Node struct {
	Kind   Kind
	Value  any
	Fields []Field
	Items  []*Node
}

// Get returns the first field named key of a record node.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindRecord {
		return nil, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Text returns the value of a string scalar.
func (n *Node) Text() (string, bool) {
	if n == nil || n.Kind != KindScalar {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

// String renders a scalar the way it appears in the source document.
func (n *Node) String() string {
	if n == nil {
		return "null"
	}
	switch n.Kind {
	case KindRecord:
		return fmt.Sprintf("record(%d fields)", len(n.Fields))
	case KindSequence:
		return fmt.Sprintf("sequence(%d items)", len(n.Items))
	}
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// MaxParseDepth is the deepest container nesting Parse accepts.
const MaxParseDepth = 1024

// Parse decodes a single JSON document into a Node tree.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := parseValue(dec, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", domain.ErrMalformedInput)
	}
	return root, nil
}

func parseValue(dec *json.Decoder, depth int) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return &Node{Kind: KindScalar, Value: tok}, nil
	}
	if depth++; depth > MaxParseDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxParseDepth)
	}
	switch delim {
	case '{':
		n := &Node{Kind: KindRecord}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			value, err := parseValue(dec, depth)
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, Field{Key: key, Value: value})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil
	case '[':
		n := &Node{Kind: KindSequence}
		for dec.More() {
			item, err := parseValue(dec, depth)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, item)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %q", delim)
}
