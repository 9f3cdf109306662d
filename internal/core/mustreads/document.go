package mustreads

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ItemsKey holds the record list in the wrapped document shape.
const ItemsKey = "must_reads"

// ErrUnexpectedShape is returned for documents that are neither a list nor an object with must_reads.
var ErrUnexpectedShape = errors.New("unexpected JSON structure in must-reads document")

// Document is a parsed must-reads file: the raw records plus any top-level metadata.
type Document struct {
	Items    []map[string]any
	Metadata map[string]any
}

// ParseDocument accepts {"must_reads": [...], ...metadata} or a bare array.
// Entries that are not objects are skipped.
func ParseDocument(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid JSON in must-reads document: %w", err)
	}

	doc := &Document{Metadata: map[string]any{}}

	switch v := root.(type) {
	case []any:
		doc.Items = objects(v)
	case map[string]any:
		items, ok := v[ItemsKey]
		if !ok {
			return nil, ErrUnexpectedShape
		}

		list, ok := items.([]any)
		if !ok && items != nil {
			return nil, ErrUnexpectedShape
		}

		doc.Items = objects(list)

		for k, val := range v {
			if k != ItemsKey {
				doc.Metadata[k] = val
			}
		}
	default:
		return nil, ErrUnexpectedShape
	}

	return doc, nil
}

// Records normalizes every item in the document.
func (d *Document) Records() []Record {
	return NormalizeAll(d.Items)
}

// PublicationIDs returns the publication ids referenced by the document, in order.
// Entries may be objects carrying publication_id or bare id strings.
func PublicationIDs(data []byte) ([]string, error) {
	var root any
	if err := json.Unmarshal(bytes.TrimSpace(data), &root); err != nil {
		return nil, fmt.Errorf("invalid JSON in must-reads document: %w", err)
	}

	var list []any

	switch v := root.(type) {
	case []any:
		list = v
	case map[string]any:
		list, _ = v[ItemsKey].([]any)
	default:
		return nil, ErrUnexpectedShape
	}

	ids := make([]string, 0, len(list))

	for _, entry := range list {
		switch e := entry.(type) {
		case string:
			if e != "" {
				ids = append(ids, e)
			}
		case map[string]any:
			if id, ok := e[FieldPublicationID].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}

	return ids, nil
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))

	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}

	return out
}
