package core

import (
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resolver looks up committed stable ids. *Allocator satisfies it.
type Resolver interface {
	Resolve(kind Kind, transientID string) (primitive.ObjectID, error)
}

// Rewriter turns records of one entity kind into documents ready to insert.
// It converts every column to its persisted type, places it at its target
// path and replaces transient references with stable ids. It never allocates.
type Rewriter struct {
	def EntityDefinition
	ids Resolver
}

// NewRewriter returns a rewriter for def resolving references through ids.
func NewRewriter(def EntityDefinition, ids Resolver) *Rewriter {
	return &Rewriter{def: def, ids: ids}
}

// Rewrite builds the document for rec. id becomes _id; the transient id
// column is not persisted.
func (rw *Rewriter) Rewrite(rec Record, id primitive.ObjectID) (bson.D, error) {
	doc := make(bson.D, 0, len(rw.def.Fields)+1)
	doc = append(doc, bson.E{Key: "_id", Value: id})

	for _, f := range rw.def.Fields {
		raw := rec.Fields[f.Column]
		v, err := rw.value(f, raw, rec)
		if err != nil {
			return nil, rw.annotate(err, rec, f.Column, raw)
		}
		doc = setPath(doc, strings.Split(f.TargetPath(), "."), v)
	}
	return doc, nil
}

func (rw *Rewriter) value(f FieldSpec, raw string, rec Record) (any, error) {
	if f.Normalizer != nil {
		raw = f.Normalizer(raw)
	}
	raw = strings.TrimSpace(raw)

	if raw == "" && f.Type != FieldList {
		if f.AllowEmpty {
			return nil, nil
		}
		return nil, errors.New("required value is empty")
	}

	switch f.Type {
	case FieldText:
		return raw, nil

	case FieldEnum:
		v, ok := matchEnum(raw, f.EnumValues)
		if !ok {
			return nil, errors.Errorf("must be one of %s", strings.Join(f.EnumValues, ", "))
		}
		return v, nil

	case FieldDate:
		return ParseDate(raw)

	case FieldFloat:
		n, err := ParseFloat(raw)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(f.Bounds, n); err != nil {
			return nil, err
		}
		return n, nil

	case FieldInt:
		n, err := ParseInt(raw)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(f.Bounds, float64(n)); err != nil {
			return nil, err
		}
		return int(n), nil

	case FieldBool:
		return ParseBool(raw)

	case FieldList:
		return SplitList(raw, ","), nil

	case FieldRef:
		return rw.resolve(f, raw, rec)

	default:
		return nil, errors.Errorf("unsupported field type %s", f.Type)
	}
}

func (rw *Rewriter) resolve(f FieldSpec, raw string, rec Record) (any, error) {
	switch ref := f.Ref.(type) {
	case PlainRef:
		return rw.ids.Resolve(ref.Target, raw)

	case PolymorphicRef:
		disc := strings.TrimSpace(rec.Fields[ref.Discriminator])
		kind, ok := lookupKind(ref.Kinds, disc)
		if !ok {
			return nil, &MalformedRecordError{
				Column: ref.Discriminator,
				Value:  disc,
				Reason: "unknown reference type",
			}
		}
		return rw.ids.Resolve(kind, raw)

	case PackedRef:
		return rw.unpack(ref, raw, rec)

	default:
		return nil, errors.Errorf("column %s has no reference target", f.Column)
	}
}

// unpack splits a packed list into one sub-document per item.
func (rw *Rewriter) unpack(ref PackedRef, raw string, rec Record) (bson.A, error) {
	items := strings.Split(raw, ref.ItemSep)
	out := make(bson.A, 0, len(items))

	for i, item := range items {
		parts := strings.Split(item, ref.FieldSep)
		if len(parts) != ref.Arity() {
			return nil, errors.Errorf("line item %d: expected %d fields separated by %q, found %d",
				i+1, ref.Arity(), ref.FieldSep, len(parts))
		}

		sub := make(bson.D, 0, len(parts))
		for j, spec := range ref.Items {
			v, err := rw.value(spec, parts[j], rec)
			if err != nil {
				var unresolved *UnresolvedReferenceError
				if errors.As(err, &unresolved) {
					unresolved.LineItem = i + 1
					return nil, unresolved
				}
				return nil, errors.Errorf("line item %d %s: %v", i+1, spec.Column, err)
			}
			sub = setPath(sub, strings.Split(spec.TargetPath(), "."), v)
		}
		out = append(out, sub)
	}
	return out, nil
}

// annotate attaches record context to a conversion or resolution failure.
func (rw *Rewriter) annotate(err error, rec Record, column, raw string) error {
	var unresolved *UnresolvedReferenceError
	if errors.As(err, &unresolved) {
		unresolved.Kind = rw.def.Kind
		unresolved.Row = rec.Row
		unresolved.Column = column
		return unresolved
	}

	var malformed *MalformedRecordError
	if errors.As(err, &malformed) {
		malformed.Kind = rw.def.Kind
		malformed.File = rw.def.File
		malformed.Row = rec.Row
		malformed.Line = rec.Line
		if malformed.Column == "" {
			malformed.Column = column
			malformed.Value = raw
		}
		return malformed
	}

	return &MalformedRecordError{
		Kind:   rw.def.Kind,
		File:   rw.def.File,
		Row:    rec.Row,
		Line:   rec.Line,
		Column: column,
		Value:  raw,
		Reason: err.Error(),
	}
}

func lookupKind(kinds map[string]Kind, disc string) (Kind, bool) {
	for alias, kind := range kinds {
		if strings.EqualFold(alias, disc) {
			return kind, true
		}
	}
	return "", false
}

func checkBounds(b *Bounds, n float64) error {
	if b == nil {
		return nil
	}
	if n < b.Min || n > b.Max {
		return errors.Errorf("value %v outside [%v, %v]", n, b.Min, b.Max)
	}
	return nil
}

// setPath places v at the dotted path inside doc, creating nested documents
// as needed and keeping key order stable.
func setPath(doc bson.D, path []string, v any) bson.D {
	key := path[0]
	if len(path) == 1 {
		return append(doc, bson.E{Key: key, Value: v})
	}
	for i := range doc {
		if doc[i].Key != key {
			continue
		}
		if sub, ok := doc[i].Value.(bson.D); ok {
			doc[i].Value = setPath(sub, path[1:], v)
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: setPath(nil, path[1:], v)})
}
