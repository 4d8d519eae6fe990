package manifest

import (
	"strings"
)

// Project holds the user-authored narrative of a session.
type Project struct {
	Name           string `json:"projectName"`
	Overview       string `json:"overview"`
	Prompts        string `json:"prompts"`
	SessionSummary string `json:"sessionSummary"`
	Modules        string `json:"modules"`
}

// Report section headers, in emission order.
const (
	HeaderOverview       = "## Overview"
	HeaderPrompts        = "## Prompts"
	HeaderSessionSummary = "## Session Summary"
	HeaderModules        = "## Modules"
	HeaderFileListing    = "## File Listing"
)

// ListingSeparator sits between path and classification in the file listing.
const ListingSeparator = " — "

// Report renders the free-text report:
//
//	# <name>
//
//	## Overview
//	<overview>
//
//	## Prompts
//	...
//	## File Listing
//	<path> — <classification>
//
// Sections are always present, even when empty. Text is written as is.
func Report(p Project, entries []Entry) string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(p.Name)
	b.WriteString("\n\n")

	section := func(header, body string) {
		b.WriteString(header)
		b.WriteByte('\n')
		if body = strings.TrimRight(body, "\n"); body != "" {
			b.WriteString(body)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	section(HeaderOverview, p.Overview)
	section(HeaderPrompts, p.Prompts)
	section(HeaderSessionSummary, p.SessionSummary)
	section(HeaderModules, p.Modules)

	b.WriteString(HeaderFileListing)
	b.WriteByte('\n')
	for _, e := range entries {
		b.WriteString(e.Path)
		b.WriteString(ListingSeparator)
		b.WriteString(string(e.UserDefinedType))
		b.WriteByte('\n')
	}
	return b.String()
}
