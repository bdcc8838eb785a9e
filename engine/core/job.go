package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownJob = errors.New("unknown job")

// -----------------------------------------------------------------------------
// Job Name
// -----------------------------------------------------------------------------

type JobName string

const (
	JobParse  JobName = "parse"
	JobExport JobName = "export"
)

func (j JobName) String() string {
	return string(j)
}

// Module returns the settings module that authorizes the job.
func (j JobName) Module() ModuleName {
	switch j {
	case JobParse:
		return ModuleParser
	case JobExport:
		return ModuleExporter
	default:
		return ""
	}
}

// Label is the idle caption of the action button, e.g. "Parse".
func (j JobName) Label() string {
	if j == "" {
		return ""
	}
	s := string(j)
	return strings.ToUpper(s[:1]) + s[1:]
}

func Jobs() []JobName {
	return []JobName{JobParse, JobExport}
}

func ParseJobName(s string) (JobName, error) {
	switch j := JobName(strings.ToLower(strings.TrimSpace(s))); j {
	case JobParse, JobExport:
		return j, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJob, s)
	}
}

// -----------------------------------------------------------------------------
// Settings Module
// -----------------------------------------------------------------------------

type ModuleName string

const (
	ModuleParser   ModuleName = "parser"
	ModuleExporter ModuleName = "exporter"
)

func (m ModuleName) String() string {
	return string(m)
}

func (m ModuleName) Job() JobName {
	switch m {
	case ModuleParser:
		return JobParse
	case ModuleExporter:
		return JobExport
	default:
		return ""
	}
}

func ParseModuleName(s string) (ModuleName, error) {
	switch m := ModuleName(strings.ToLower(strings.TrimSpace(s))); m {
	case ModuleParser, ModuleExporter:
		return m, nil
	default:
		return "", fmt.Errorf("unknown settings module: %q", s)
	}
}

// -----------------------------------------------------------------------------
// Descriptor
// -----------------------------------------------------------------------------

// Descriptor is the static identity of a job and the view elements bound
// to it. It is built once at wiring time and never mutated.
type Descriptor struct {
	Name             JobName
	Module           ModuleName
	PollInterval     time.Duration
	PillID           string
	ProgressPanelID  string
	ProgressItemID   string
	TitleContainerID string
	MenuID           string
}

// NewDescriptor returns the descriptor for a known job.
func NewDescriptor(name JobName, pollInterval time.Duration) (Descriptor, error) {
	if pollInterval <= 0 {
		return Descriptor{}, fmt.Errorf("poll interval must be positive, got %s", pollInterval)
	}
	var list string
	switch name {
	case JobParse:
		list = "parsed"
	case JobExport:
		list = "exported"
	default:
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return Descriptor{
		Name:             name,
		Module:           name.Module(),
		PollInterval:     pollInterval,
		PillID:           "pills-" + name.Module().String() + "-tab",
		ProgressPanelID:  name.String() + "_accordion_collapse",
		ProgressItemID:   name.String() + "_accordion_item",
		TitleContainerID: list + "_titles",
		MenuID:           list + "_dropdown_menu",
	}, nil
}
