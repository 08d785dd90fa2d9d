// Package relation models relation inputs on write payloads.
//
// A relation may arrive as a raw id (123 or "123"), a reference object
// ({"id":...} or {"documentId":...}) or a connect list
// ({"connect":[...]}). Parse turns any of these into an Input once, and
// Resolve maps it onto internal ids at the storage boundary.
package relation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidRelation    = errors.New("invalid_relation")
	ErrUnresolvedRelation = errors.New("unresolved_relation")
)

type Kind int

const (
	KindNone Kind = iota
	KindRawID
	KindReference
	KindConnectList
)

func (k Kind) String() string {
	switch k {
	case KindRawID:
		return "raw_id"
	case KindReference:
		return "reference"
	case KindConnectList:
		return "connect_list"
	default:
		return "none"
	}
}

// Ref points at an entity either by internal id or by document id.
type Ref struct {
	ID         snowflake.ID `json:"id,omitempty"`
	DocumentID string       `json:"documentId,omitempty"`
}

func (r Ref) IsZero() bool {
	return r.ID == 0 && strings.TrimSpace(r.DocumentID) == ""
}

type Input struct {
	Kind Kind
	Refs []Ref
}

func ByRawID(id snowflake.ID) Input {
	return Input{Kind: KindRawID, Refs: []Ref{{ID: id}}}
}

func ByReference(ref Ref) Input {
	return Input{Kind: KindReference, Refs: []Ref{ref}}
}

func ByConnectList(refs ...Ref) Input {
	return Input{Kind: KindConnectList, Refs: refs}
}

func (in Input) IsEmpty() bool {
	for _, ref := range in.Refs {
		if !ref.IsZero() {
			return false
		}
	}
	return true
}

func (in *Input) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*in = parsed
	return nil
}

// Parse reads a relation payload. null and empty input yield KindNone.
func Parse(data []byte) (Input, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Input{}, nil
	}

	switch data[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return Input{}, fmt.Errorf("%w: %v", ErrInvalidRelation, err)
		}
		if raw, ok := obj["connect"]; ok {
			refs, err := parseList(raw)
			if err != nil {
				return Input{}, err
			}
			return ByConnectList(refs...), nil
		}
		ref, err := parseRefObject(obj)
		if err != nil {
			return Input{}, err
		}
		return ByReference(ref), nil
	case '[':
		refs, err := parseList(data)
		if err != nil {
			return Input{}, err
		}
		return ByConnectList(refs...), nil
	default:
		ref, err := parseScalar(data)
		if err != nil {
			return Input{}, err
		}
		if ref.ID != 0 {
			return ByRawID(ref.ID), nil
		}
		return ByReference(ref), nil
	}
}

func parseList(data json.RawMessage) ([]Ref, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRelation, err)
	}
	refs := make([]Ref, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		if item[0] == '{' {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRelation, err)
			}
			ref, err := parseRefObject(obj)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
			continue
		}
		ref, err := parseScalar(item)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseRefObject(obj map[string]json.RawMessage) (Ref, error) {
	var ref Ref
	if raw, ok := obj["id"]; ok {
		parsed, err := parseScalar(raw)
		if err != nil {
			return Ref{}, err
		}
		ref = parsed
	}
	if raw, ok := obj["documentId"]; ok {
		var doc string
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Ref{}, fmt.Errorf("%w: documentId must be a string", ErrInvalidRelation)
		}
		ref.DocumentID = strings.TrimSpace(doc)
	}
	if ref.IsZero() {
		return Ref{}, fmt.Errorf("%w: reference without id", ErrInvalidRelation)
	}
	return ref, nil
}

// parseScalar accepts a JSON number or string. Numeric strings are ids,
// anything else is a document id.
func parseScalar(data []byte) (Ref, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrInvalidRelation, err)
	}
	switch val := v.(type) {
	case json.Number:
		id, err := strconv.ParseInt(val.String(), 10, 64)
		if err != nil || id <= 0 {
			return Ref{}, fmt.Errorf("%w: id %s", ErrInvalidRelation, val)
		}
		return Ref{ID: snowflake.ID(id)}, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return Ref{}, fmt.Errorf("%w: empty id", ErrInvalidRelation)
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			return Ref{ID: snowflake.ID(id)}, nil
		}
		return Ref{DocumentID: s}, nil
	default:
		return Ref{}, fmt.Errorf("%w: unsupported value %T", ErrInvalidRelation, v)
	}
}

// DocumentLookup maps document ids to internal ids. Unknown ids are absent.
type DocumentLookup func(ctx context.Context, documentIDs []string) (map[string]snowflake.ID, error)

// Resolve turns an Input into ordered, de-duplicated internal ids.
// A document id the lookup does not know yields ErrUnresolvedRelation.
func Resolve(ctx context.Context, in Input, lookup DocumentLookup) ([]snowflake.ID, error) {
	if in.IsEmpty() {
		return nil, nil
	}

	var docIDs []string
	for _, ref := range in.Refs {
		if ref.ID == 0 && ref.DocumentID != "" {
			docIDs = append(docIDs, ref.DocumentID)
		}
	}

	var byDoc map[string]snowflake.ID
	if len(docIDs) > 0 {
		if lookup == nil {
			return nil, fmt.Errorf("%w: no lookup for document ids", ErrUnresolvedRelation)
		}
		found, err := lookup(ctx, docIDs)
		if err != nil {
			return nil, err
		}
		byDoc = found
	}

	seen := make(map[snowflake.ID]struct{}, len(in.Refs))
	ids := make([]snowflake.ID, 0, len(in.Refs))
	for _, ref := range in.Refs {
		id := ref.ID
		if id == 0 {
			if ref.DocumentID == "" {
				continue
			}
			resolved, ok := byDoc[ref.DocumentID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnresolvedRelation, ref.DocumentID)
			}
			id = resolved
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResolveOne resolves a single-valued relation. Connect lists must hold at most one ref.
func ResolveOne(ctx context.Context, in Input, lookup DocumentLookup) (*snowflake.ID, error) {
	ids, err := Resolve(ctx, in, lookup)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		return &ids[0], nil
	default:
		return nil, fmt.Errorf("%w: expected one relation, got %d", ErrInvalidRelation, len(ids))
	}
}
