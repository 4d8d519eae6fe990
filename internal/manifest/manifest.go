// Package manifest flattens an annotated project tree and renders the two
// export documents: the sAtddef.yaml manifest and the free-text report.
package manifest

import (
	"strconv"
	"strings"
	"time"

	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/tree"
)

// Version is written as sAtdVersion.
const Version = "2.0"

// Entry is the manifest projection of one node.
type Entry struct {
	Path             string                `yaml:"path" json:"path"`
	Type             models.Kind           `yaml:"type" json:"type"`
	OriginalMimeType string                `yaml:"originalMimeType,omitempty" json:"originalMimeType,omitempty"`
	UserDefinedType  models.Classification `yaml:"userDefinedType" json:"userDefinedType"`
	AIClassification string                `yaml:"aiClassification,omitempty" json:"aiClassification,omitempty"`
	Tags             []string              `yaml:"tags" json:"tags"`
	Size             int64                 `yaml:"size" json:"size"`
	AISummary        string                `yaml:"aiSummary,omitempty" json:"aiSummary,omitempty"`
	QRDecodedValue   string                `yaml:"qrDecodedValue,omitempty" json:"qrDecodedValue,omitempty"`
	Relationships    string                `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Settings is the pass-through settings block.
type Settings struct {
	InformationIntegrationDegree int    `yaml:"informationIntegrationDegree" json:"informationIntegrationDegree"`
	AIModelUsed                  string `yaml:"aiModelUsed,omitempty" json:"aiModelUsed,omitempty"`
	LocalLLMEnabled              *bool  `yaml:"localLlmEnabled,omitempty" json:"localLlmEnabled,omitempty"`
	LocalLLMEndpoint             string `yaml:"localLlmEndpoint,omitempty" json:"localLlmEndpoint,omitempty"`
	LocalLLMModelType            string `yaml:"localLlmModelType,omitempty" json:"localLlmModelType,omitempty"`
}

// Document is everything the manifest holds.
type Document struct {
	Version         string    `yaml:"sAtdVersion" json:"sAtdVersion"`
	ProjectName     string    `yaml:"projectName" json:"projectName"`
	GenerationDate  time.Time `yaml:"-" json:"generationDate"`
	Settings        Settings  `yaml:"settings" json:"settings"`
	ProjectOverview string    `yaml:"projectOverview" json:"projectOverview"`
	FileManifest    []Entry   `yaml:"fileManifest" json:"fileManifest"`
}

// Entries flattens roots in pre-order, parents before children and children
// in their sorted order.
func Entries(roots []*models.Node) []Entry {
	nodes := tree.Flatten(roots)
	out := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, EntryFor(n))
	}
	return out
}

// EntryFor projects a single node.
func EntryFor(n *models.Node) Entry {
	cls := n.Classification
	if cls == "" {
		cls = models.DefaultClassification(n.Kind)
	}
	e := Entry{
		Path:             n.Path,
		Type:             n.Kind,
		UserDefinedType:  cls,
		AIClassification: n.AIClassification,
		Tags:             n.Tags,
		Size:             n.SizeBytes,
		AISummary:        n.AISummary,
		QRDecodedValue:   n.QRPayload,
		Relationships:    n.RelationshipNotes,
	}
	if !n.IsDir() {
		e.OriginalMimeType = n.MimeHint
	}
	return e
}

// emitter accumulates manifest lines and keeps the first error.
type emitter struct {
	b   strings.Builder
	err error
}

func (e *emitter) raw(s string) {
	e.b.WriteString(s)
}

// field writes "key: value" at indent, quoting value as needed.
func (e *emitter) field(indent int, key, value string) {
	if e.err != nil {
		return
	}
	v, err := formatScalar(value, indent)
	if err != nil {
		e.err = &apperr.SerializationError{Field: key, Err: err}
		return
	}
	e.line(indent, key+": "+v)
}

// optional writes field only when value is non-empty.
func (e *emitter) optional(indent int, key, value string) {
	if value != "" {
		e.field(indent, key, value)
	}
}

// verbatim writes a value that is known to be plain-safe.
func (e *emitter) verbatim(indent int, key, value string) {
	e.line(indent, key+": "+value)
}

func (e *emitter) line(indent int, s string) {
	e.b.WriteString(strings.Repeat(" ", indent))
	e.b.WriteString(s)
	e.b.WriteByte('\n')
}

// Marshal renders doc in the manifest grammar. Top-level sections are
// separated by blank lines; entry fields follow a fixed order and absent
// optional fields are omitted.
func Marshal(doc Document) ([]byte, error) {
	e := &emitter{}

	version := doc.Version
	if version == "" {
		version = Version
	}
	e.field(0, "sAtdVersion", version)
	e.field(0, "projectName", doc.ProjectName)
	e.field(0, "generationDate", doc.GenerationDate.UTC().Format(time.RFC3339))
	e.raw("\n")

	e.line(0, "settings:")
	s := doc.Settings
	e.verbatim(2, "informationIntegrationDegree", strconv.Itoa(s.InformationIntegrationDegree))
	e.optional(2, "aiModelUsed", s.AIModelUsed)
	if s.LocalLLMEnabled != nil {
		e.verbatim(2, "localLlmEnabled", strconv.FormatBool(*s.LocalLLMEnabled))
	}
	e.optional(2, "localLlmEndpoint", s.LocalLLMEndpoint)
	e.optional(2, "localLlmModelType", s.LocalLLMModelType)
	e.raw("\n")

	e.field(0, "projectOverview", doc.ProjectOverview)
	e.raw("\n")

	if len(doc.FileManifest) == 0 {
		e.line(0, "fileManifest: []")
	} else {
		e.line(0, "fileManifest:")
	}
	for _, entry := range doc.FileManifest {
		e.entry(entry)
	}

	if e.err != nil {
		return nil, e.err
	}
	return []byte(e.b.String()), nil
}

func (e *emitter) entry(en Entry) {
	if e.err != nil {
		return
	}
	v, err := formatScalar(en.Path, 4)
	if err != nil {
		e.err = &apperr.SerializationError{Field: "path", Err: err}
		return
	}
	e.line(2, "- path: "+v)

	e.verbatim(4, "type", string(en.Type))
	e.optional(4, "originalMimeType", en.OriginalMimeType)
	cls := en.UserDefinedType
	if cls == "" {
		cls = models.DefaultClassification(en.Type)
	}
	e.field(4, "userDefinedType", string(cls))
	e.optional(4, "aiClassification", en.AIClassification)

	tags := nonEmpty(en.Tags)
	if len(tags) == 0 {
		e.line(4, "tags: []")
	} else {
		e.line(4, "tags:")
		for _, t := range tags {
			if e.err != nil {
				return
			}
			tv, err := formatScalar(t, 6)
			if err != nil {
				e.err = &apperr.SerializationError{Field: "tags", Err: err}
				return
			}
			e.line(6, "- "+tv)
		}
	}

	e.verbatim(4, "size", strconv.FormatInt(en.Size, 10))
	e.optional(4, "aiSummary", en.AISummary)
	e.optional(4, "qrDecodedValue", en.QRDecodedValue)
	e.optional(4, "relationships", en.Relationships)
}

func nonEmpty(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
