package chronicle

import (
	"github.com/roach88/isaac/internal/codec"
	"github.com/roach88/isaac/internal/ir"
)

// Payload is the version-type specific content of a version.
//
// The set of variants is closed: ConceptPayload, MemberPayload,
// ComponentNidPayload, StringPayload, LongPayload and DescriptionPayload.
type Payload interface {
	// VersionType returns the version type this payload belongs to.
	VersionType() ir.VersionType

	encode(f *fields)
	equal(other Payload) bool
	summary() map[string]any
}

// ConceptPayload carries no fields; a concept version records only its stamp.
type ConceptPayload struct{}

func (ConceptPayload) VersionType() ir.VersionType { return ir.VersionTypeConcept }
func (ConceptPayload) encode(*fields)              {}
func (ConceptPayload) summary() map[string]any     { return map[string]any{} }

func (ConceptPayload) equal(other Payload) bool {
	_, ok := other.(ConceptPayload)
	return ok
}

// MemberPayload marks membership of the referenced component in the
// assemblage.
type MemberPayload struct{}

func (MemberPayload) VersionType() ir.VersionType { return ir.VersionTypeMember }
func (MemberPayload) encode(*fields)              {}
func (MemberPayload) summary() map[string]any     { return map[string]any{} }

func (MemberPayload) equal(other Payload) bool {
	_, ok := other.(MemberPayload)
	return ok
}

// ComponentNidPayload points at another component.
type ComponentNidPayload struct {
	Component ir.Nid
}

func (ComponentNidPayload) VersionType() ir.VersionType { return ir.VersionTypeComponentNid }
func (p ComponentNidPayload) encode(f *fields)          { f.putNid(p.Component) }

func (p ComponentNidPayload) equal(other Payload) bool {
	o, ok := other.(ComponentNidPayload)
	return ok && o == p
}

func (p ComponentNidPayload) summary() map[string]any {
	return map[string]any{"component": p.Component}
}

// StringPayload carries a string value.
type StringPayload struct {
	Value string
}

func (StringPayload) VersionType() ir.VersionType { return ir.VersionTypeString }
func (p StringPayload) encode(f *fields)          { f.b.PutString(p.Value) }

func (p StringPayload) equal(other Payload) bool {
	o, ok := other.(StringPayload)
	return ok && o == p
}

func (p StringPayload) summary() map[string]any {
	return map[string]any{"value": p.Value}
}

// LongPayload carries a 64-bit integer value.
type LongPayload struct {
	Value int64
}

func (LongPayload) VersionType() ir.VersionType { return ir.VersionTypeLong }
func (p LongPayload) encode(f *fields)          { f.b.PutInt64(p.Value) }

func (p LongPayload) equal(other Payload) bool {
	o, ok := other.(LongPayload)
	return ok && o == p
}

func (p LongPayload) summary() map[string]any {
	return map[string]any{"value": p.Value}
}

// DescriptionPayload is the text of a description semantic.
type DescriptionPayload struct {
	CaseSignificance ir.Nid
	Language         ir.Nid
	DescriptionType  ir.Nid
	Text             string
}

func (DescriptionPayload) VersionType() ir.VersionType { return ir.VersionTypeDescription }

func (p DescriptionPayload) encode(f *fields) {
	f.putNid(p.CaseSignificance)
	f.putNid(p.Language)
	f.putNid(p.DescriptionType)
	f.b.PutString(p.Text)
}

func (p DescriptionPayload) equal(other Payload) bool {
	o, ok := other.(DescriptionPayload)
	return ok && o == p
}

func (p DescriptionPayload) summary() map[string]any {
	return map[string]any{
		"case_significance": p.CaseSignificance,
		"language":          p.Language,
		"description_type":  p.DescriptionType,
		"text":              p.Text,
	}
}

func decodePayload(vt ir.VersionType, f *fields) (Payload, error) {
	var p Payload
	switch vt {
	case ir.VersionTypeConcept:
		p = ConceptPayload{}
	case ir.VersionTypeMember:
		p = MemberPayload{}
	case ir.VersionTypeComponentNid:
		p = ComponentNidPayload{Component: f.getNid()}
	case ir.VersionTypeString:
		p = StringPayload{Value: f.b.GetString()}
	case ir.VersionTypeLong:
		p = LongPayload{Value: f.b.GetInt64()}
	case ir.VersionTypeDescription:
		p = DescriptionPayload{
			CaseSignificance: f.getNid(),
			Language:         f.getNid(),
			DescriptionType:  f.getNid(),
			Text:             f.b.GetString(),
		}
	default:
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "unknown version type %s", vt)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return p, nil
}

// fields reads and writes component references in the buffer's mode:
// nids in INTERNAL mode, primordial UUIDs in EXTERNAL mode.
type fields struct {
	b     *codec.Buffer
	mode  codec.Mode
	ids   Identifiers
	first error
}

func (f *fields) putNid(nid ir.Nid) {
	if f.mode == codec.ModeInternal {
		f.b.PutNid(nid)
		return
	}
	id, err := f.ids.PrimordialUUID(nid)
	if err != nil && f.first == nil {
		f.first = err
	}
	f.b.PutUUID(id)
}

func (f *fields) getNid() ir.Nid {
	if f.mode == codec.ModeInternal {
		return f.b.GetNid()
	}
	id := f.b.GetUUID()
	if f.b.Err() != nil {
		return 0
	}
	nid, err := f.ids.AssignNid(id)
	if err != nil && f.first == nil {
		f.first = err
	}
	return nid
}

func (f *fields) err() error {
	if f.first != nil {
		return f.first
	}
	if err := f.b.Err(); err != nil {
		return &ir.Error{Code: ir.ErrCodeCorruptRecord, Message: "truncated version record", Err: err}
	}
	return nil
}

// Fields returns the payload's fields by name. Component references are
// nids.
func Fields(p Payload) map[string]any {
	return p.summary()
}
