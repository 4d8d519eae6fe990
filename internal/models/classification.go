package models

import "fmt"

// Classification is the user-assigned category of a node. The set is closed;
// Other covers anything the fixed list does not.
type Classification string

const (
	Unclassified     Classification = "Unclassified"
	Code             Classification = "Code"
	TextDocument     Classification = "Text Document"
	Image            Classification = "Image"
	Video            Classification = "Video"
	Audio            Classification = "Audio"
	Configuration    Classification = "Configuration"
	Dataset          Classification = "Dataset"
	Archive          Classification = "Archive"
	Executable       Classification = "Executable"
	Spreadsheet      Classification = "Spreadsheet"
	Presentation     Classification = "Presentation"
	CharacterSheet   Classification = "Character Sheet"
	ScenarioScript   Classification = "Scenario Script"
	UIMockup         Classification = "UI Mockup"
	SystemDiagram    Classification = "System Diagram"
	PromptDefinition Classification = "Prompt Definition"
	KnowledgeBase    Classification = "Knowledge Base"
	Other            Classification = "Other"

	// Directory is reserved for directory nodes and cannot be assigned to files.
	Directory Classification = "Directory"
)

// FileClassifications lists the values a user may assign to a file, in
// display order.
var FileClassifications = []Classification{
	Unclassified, Code, TextDocument, Image, Video, Audio,
	Configuration, Dataset, Archive, Executable, Spreadsheet,
	Presentation, CharacterSheet, ScenarioScript, UIMockup,
	SystemDiagram, PromptDefinition, KnowledgeBase, Other,
}

// ParseClassification validates s against the closed set.
func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if c == Directory {
		return c, nil
	}
	for _, known := range FileClassifications {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown classification %q", s)
}

// DefaultClassification returns the classification a freshly built node of
// the given kind starts with.
func DefaultClassification(k Kind) Classification {
	if k == KindDirectory {
		return Directory
	}
	return Unclassified
}
