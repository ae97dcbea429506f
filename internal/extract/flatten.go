package extract

import (
	"fmt"
	"strings"

	"ragtutor/internal/domain"
)

// DefaultMaxDepth bounds recursion in Flatten.
const DefaultMaxDepth = 64

// FlattenOptions configures Flatten.
type FlattenOptions struct {
	// MaxDepth is the deepest container nesting accepted. Zero means DefaultMaxDepth.
	MaxDepth int
}

type leaf struct {
	text string
	meta map[string]any
}

type flattener struct {
	maxDepth int
}

// Flatten turns an arbitrary document into one chunk per scalar leaf.
// Leaves render as "key: value" or "key[i]: value" and nested containers
// prefix their label ("parent > ", "key[i] > ") onto every leaf below them.
// Blank strings produce no chunk.
func Flatten(root *Node, opts FlattenOptions) ([]domain.Chunk, error) {
	if root == nil {
		return nil, nil
	}
	f := flattener{maxDepth: opts.MaxDepth}
	if f.maxDepth <= 0 {
		f.maxDepth = DefaultMaxDepth
	}
	var leaves []leaf
	var err error
	switch root.Kind {
	case KindRecord:
		leaves, err = f.record(root, 1)
	case KindSequence:
		leaves, err = f.rootSequence(root)
	default:
		if s := root.String(); strings.TrimSpace(s) != "" {
			leaves = []leaf{{text: s, meta: map[string]any{"type": "converted_data"}}}
		}
	}
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(leaves))
	for i, l := range leaves {
		chunks[i] = domain.Chunk{Text: l.text, Index: i, Metadata: l.meta}
	}
	return chunks, nil
}

func (f flattener) checkDepth(depth int) error {
	if depth > f.maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", domain.ErrMalformedInput, f.maxDepth)
	}
	return nil
}

func (f flattener) rootSequence(seq *Node) ([]leaf, error) {
	var out []leaf
	for i, item := range seq.Items {
		switch item.Kind {
		case KindRecord:
			nested, err := f.record(item, 2)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		case KindSequence:
			nested, err := f.sequence(fmt.Sprintf("[%d]", i), item, 2)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			if s, ok := item.Text(); ok {
				if strings.TrimSpace(s) != "" {
					out = append(out, leaf{text: s, meta: map[string]any{"type": "text_item"}})
				}
				continue
			}
			out = append(out, leaf{text: item.String(), meta: map[string]any{"type": "converted_item"}})
		}
	}
	return out, nil
}

func (f flattener) record(rec *Node, depth int) ([]leaf, error) {
	if err := f.checkDepth(depth); err != nil {
		return nil, err
	}
	var out []leaf
	for _, field := range rec.Fields {
		key, value := field.Key, field.Value
		switch value.Kind {
		case KindScalar:
			if s, ok := value.Text(); ok {
				if strings.TrimSpace(s) != "" {
					out = append(out, leaf{
						text: key + ": " + s,
						meta: map[string]any{"type": "key_value", "key": key, "source": "json"},
					})
				}
				continue
			}
			out = append(out, leaf{
				text: key + ": " + value.String(),
				meta: map[string]any{"type": "converted_value", "key": key, "source": "json"},
			})
		case KindRecord:
			nested, err := f.record(value, depth+1)
			if err != nil {
				return nil, err
			}
			for i := range nested {
				nested[i].text = key + " > " + nested[i].text
				nested[i].meta["parent_key"] = key
			}
			out = append(out, nested...)
		case KindSequence:
			nested, err := f.sequence(key, value, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

func (f flattener) sequence(key string, seq *Node, depth int) ([]leaf, error) {
	if err := f.checkDepth(depth); err != nil {
		return nil, err
	}
	var out []leaf
	for i, item := range seq.Items {
		label := fmt.Sprintf("%s[%d]", key, i)
		switch item.Kind {
		case KindScalar:
			if s, ok := item.Text(); ok {
				if strings.TrimSpace(s) != "" {
					out = append(out, leaf{
						text: label + ": " + s,
						meta: map[string]any{"type": "array_item", "key": key, "array_index": i, "source": "json"},
					})
				}
				continue
			}
			out = append(out, leaf{
				text: label + ": " + item.String(),
				meta: map[string]any{"type": "array_converted", "key": key, "array_index": i, "source": "json"},
			})
		case KindRecord:
			nested, err := f.record(item, depth+1)
			if err != nil {
				return nil, err
			}
			for j := range nested {
				nested[j].text = label + " > " + nested[j].text
				nested[j].meta["parent_key"] = key
				nested[j].meta["array_index"] = i
			}
			out = append(out, nested...)
		case KindSequence:
			nested, err := f.sequence(label, item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}
