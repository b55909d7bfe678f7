package chronicle

import (
	"fmt"

	"github.com/roach88/isaac/internal/ir"
)

// Summary renders the chronicle as a map suitable for ir.MarshalCanonical.
// Versions appear in VersionList order; canceled versions are omitted.
func (c *Chronicle) Summary() (map[string]any, error) {
	additional := c.AdditionalUUIDs()
	ids := make([]string, len(additional))
	for i, id := range additional {
		ids[i] = id.String()
	}

	var versions []any
	for _, v := range c.VersionList() {
		seq := v.StampSequence()
		if c.env.Stamps.IsCanceled(seq) {
			continue
		}
		st, err := c.env.Stamps.Resolve(seq)
		if err != nil {
			return nil, fmt.Errorf("summarize chronicle %d: %w", c.nid, err)
		}
		versions = append(versions, map[string]any{
			"stamp_sequence": seq,
			"status":         st.Status.String(),
			"time":           st.Time,
			"author":         st.Author,
			"module":         st.Module,
			"path":           st.Path,
			"fields":         v.Payload().summary(),
		})
	}
	if versions == nil {
		versions = []any{}
	}

	s := map[string]any{
		"nid":              c.nid,
		"object_type":      c.objectType.String(),
		"version_type":     c.versionType.String(),
		"assemblage":       c.assemblage,
		"primordial_uuid":  c.primordial.String(),
		"additional_uuids": ids,
		"write_sequence":   c.WriteSequence(),
		"versions":         versions,
	}
	if c.objectType == ir.ObjectTypeSemantic {
		s["referenced_component"] = c.referencedComponent
	}
	return s, nil
}
