package tabctx

import (
	"regexp"
	"strings"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
)

const (
	PillParser   = "pills-parser-tab"
	PillExporter = "pills-exporter-tab"
)

// Source is the view state the resolver reads. Every call is a live query.
type Source interface {
	ActivePill() string
	// ActiveDropdownItem returns the raw text of the selected item, which may
	// end with a counter badge.
	ActiveDropdownItem(menuID string) string
	PanelExpanded(panelID string) bool
}

// Snapshot is a copy of the view hints taken at one decision point.
type Snapshot struct {
	Job      core.JobName
	SubTab   *string
	Expanded bool
}

func (s Snapshot) Args() action.Args {
	return action.Args{SelectedTab: s.SubTab, Expanded: s.Expanded}
}

type Resolver struct {
	src         Source
	descriptors map[core.JobName]core.Descriptor
}

func NewResolver(src Source, descriptors ...core.Descriptor) *Resolver {
	r := &Resolver{
		src:         src,
		descriptors: make(map[core.JobName]core.Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		r.descriptors[d.Name] = d
	}
	return r
}

// ActiveJob maps the active pill to its job.
func (r *Resolver) ActiveJob() (core.JobName, bool) {
	switch r.src.ActivePill() {
	case PillParser:
		return core.JobParse, true
	case PillExporter:
		return core.JobExport, true
	default:
		return "", false
	}
}

// Snapshot reads the sub-tab and expanded flag for job. An unknown job
// yields a snapshot with no hints.
func (r *Resolver) Snapshot(job core.JobName) Snapshot {
	snap := Snapshot{Job: job}
	d, ok := r.descriptors[job]
	if !ok {
		return snap
	}
	snap.SubTab = CleanSubTab(r.src.ActiveDropdownItem(d.MenuID))
	snap.Expanded = r.src.PanelExpanded(d.ProgressPanelID)
	return snap
}

// Selection is the payload of the unload beacon.
func (r *Resolver) Selection() action.Selection {
	sel := action.Selection{PillID: r.src.ActivePill()}
	if d, ok := r.descriptors[core.JobParse]; ok {
		sel.ParsedTab = deref(CleanSubTab(r.src.ActiveDropdownItem(d.MenuID)))
	}
	if d, ok := r.descriptors[core.JobExport]; ok {
		sel.ExportedTab = deref(CleanSubTab(r.src.ActiveDropdownItem(d.MenuID)))
	}
	return sel
}

var badgePattern = regexp.MustCompile(`\s+[(\[]?\d+[)\]]?$`)

// CleanSubTab strips a trailing counter badge and surrounding space. An empty
// result is nil.
func CleanSubTab(raw string) *string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(badgePattern.ReplaceAllString(s, ""))
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
