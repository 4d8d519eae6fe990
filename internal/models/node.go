// Package models defines the domain types for satd.
package models

// Kind tags a tree node as a file or a directory.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Node is one file or directory in a reconstructed project tree.
//
// ID always equals Path. Children is nil for files and non-nil (possibly
// empty) for directories. TextPreview and EncodedPayload are independent:
// nil means absent, which is distinct from an empty string.
type Node struct {
	ID             string  `json:"id"`
	Path           string  `json:"path"`
	Name           string  `json:"name"`
	Kind           Kind    `json:"type"`
	MimeHint       string  `json:"mimeType,omitempty"`
	SizeBytes      int64   `json:"size"`
	TextPreview    *string `json:"content,omitempty"`
	EncodedPayload *string `json:"base64Content,omitempty"`
	QRPayload      string  `json:"qrDecodedValue,omitempty"`
	Children       []*Node `json:"children,omitempty"`

	Classification    Classification `json:"userDefinedType"`
	Tags              []string       `json:"tags"`
	RelationshipNotes string         `json:"relationships,omitempty"`
	AISummary         string         `json:"aiSummary,omitempty"`
	// AIClassification is reserved for a model-suggested classification.
	// Nothing populates it yet; the manifest emits it only when set.
	AIClassification string `json:"aiClassification,omitempty"`
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDirectory
}

// Clone returns a shallow copy of n. The Children slice header is shared;
// callers that rewrite children must allocate a new slice.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}
