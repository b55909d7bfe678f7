package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/roach88/isaac/internal/chronicle"
	"github.com/roach88/isaac/internal/codec"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/isaac"
)

// ChronicleView is the portable rendering of a chronicle: identifiers are
// UUIDs and path names, never runtime nids.
type ChronicleView struct {
	File            string        `json:"file"`
	Mode            string        `json:"mode"`
	Digest          string        `json:"digest"`
	ObjectType      string        `json:"object_type"`
	VersionType     string        `json:"version_type"`
	PrimordialUUID  string        `json:"primordial_uuid"`
	AdditionalUUIDs []string      `json:"additional_uuids"`
	Assemblage      string        `json:"assemblage"`
	Component       string        `json:"referenced_component,omitempty"`
	Versions        []VersionView `json:"versions"`
}

// VersionView is one version with its stamp spelled out.
type VersionView struct {
	Status string         `json:"status"`
	Time   string         `json:"time"`
	Author string         `json:"author"`
	Module string         `json:"module"`
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields"`
}

// readChronicleFile reads a serialized chronicle into rt.
func readChronicleFile(rt *isaac.Runtime, path string) (*chronicle.Chronicle, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := chronicle.Read(rt.Env(), data)
	if err != nil {
		return nil, nil, err
	}
	return c, data, nil
}

// newChronicleView renders c with the given versions.
func newChronicleView(rt *isaac.Runtime, file string, data []byte, c *chronicle.Chronicle, versions []*chronicle.Version) (*ChronicleView, error) {
	prefix, err := codec.ReadPrefix(codec.Wrap(data))
	if err != nil {
		return nil, err
	}

	view := &ChronicleView{
		File:            file,
		Mode:            prefix.Mode.String(),
		Digest:          ir.ChronicleDigest(data).String(),
		ObjectType:      c.ObjectType().String(),
		VersionType:     c.VersionType().String(),
		PrimordialUUID:  c.PrimordialUUID().String(),
		AdditionalUUIDs: []string{},
		Assemblage:      uuidOf(rt, c.AssemblageNid()),
		Versions:        []VersionView{},
	}
	for _, id := range c.AdditionalUUIDs() {
		view.AdditionalUUIDs = append(view.AdditionalUUIDs, id.String())
	}
	if c.ObjectType() == ir.ObjectTypeSemantic {
		view.Component = uuidOf(rt, c.ReferencedComponentNid())
	}

	for _, v := range versions {
		if v.IsCanceled() {
			continue
		}
		st, err := v.Stamp()
		if err != nil {
			return nil, err
		}
		fields := chronicle.Fields(v.Payload())
		for k, value := range fields {
			if nid, ok := value.(ir.Nid); ok {
				fields[k] = uuidOf(rt, nid)
			}
		}
		view.Versions = append(view.Versions, VersionView{
			Status: st.Status.String(),
			Time:   ir.FormatTime(st.Time),
			Author: uuidOf(rt, st.Author),
			Module: uuidOf(rt, st.Module),
			Path:   pathOf(rt, st.Path),
			Fields: fields,
		})
	}
	return view, nil
}

func uuidOf(rt *isaac.Runtime, nid ir.Nid) string {
	id, err := rt.Identifiers().PrimordialUUID(nid)
	if err != nil {
		return fmt.Sprintf("nid:%d", nid)
	}
	return id.String()
}

// pathOf names a path by its configured name, or by UUID when the
// configuration does not know it.
func pathOf(rt *isaac.Runtime, nid ir.Nid) string {
	if name, ok := rt.PathName(nid); ok {
		return name
	}
	return uuidOf(rt, nid)
}

// writeText renders view as text.
func (v *ChronicleView) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s (%s %s, %s)\n", v.PrimordialUUID, v.ObjectType, v.VersionType, v.Mode)
	fmt.Fprintf(w, "  digest:     %s\n", v.Digest)
	fmt.Fprintf(w, "  assemblage: %s\n", v.Assemblage)
	if v.Component != "" {
		fmt.Fprintf(w, "  component:  %s\n", v.Component)
	}
	for _, id := range v.AdditionalUUIDs {
		fmt.Fprintf(w, "  alias:      %s\n", id)
	}
	fmt.Fprintf(w, "  versions:   %d\n", len(v.Versions))
	for _, version := range v.Versions {
		fmt.Fprintf(w, "    %-10s %-12s path=%s author=%s%s\n",
			version.Status, version.Time, version.Path, version.Author, formatFields(version.Fields))
	}
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}
