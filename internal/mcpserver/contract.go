package mcpserver

// ManifestFormatContract describes the exported manifest so LLM consumers
// can annotate nodes with values the manifest accepts.
const ManifestFormatContract = `# sAtd Manifest Format

Every export contains two files:

- ` + "`" + `sAtddef.yaml` + "`" + `: the machine-readable manifest described below.
- ` + "`" + `<projectName>.sAtd` + "`" + `: a plain-text report with the narrative fields
  and a file listing.

## Manifest keys

` + "```" + `yaml
sAtdVersion: '2.0'
projectName: game
generationDate: '2026-01-20T10:00:00Z'
settings:
  informationIntegrationDegree: 1
  aiModelUsed: 'gemini-2.5-flash'
projectOverview: |-
  Free text, may span lines.
fileManifest:
  - path: game/rules.md
    type: file
    originalMimeType: text/markdown
    userDefinedType: Text Document
    tags:
      - core
    size: 1024
    aiSummary: Rules of the game.
    relationships: Referenced by game/sheets/hero.json
` + "```" + `

## Rules

1. **Paths** are slash-separated and start with the root folder name.
2. **Every file and directory** appears once in ` + "`" + `fileManifest` + "`" + `, depth-first,
   directories before their children, siblings sorted by name.
3. **type** is ` + "`" + `file` + "`" + ` or ` + "`" + `directory` + "`" + `.
4. **userDefinedType** is one of: Unclassified, Code, Text Document, Image, Video,
   Audio, Configuration, Dataset, Archive, Executable, Spreadsheet, Presentation,
   Character Sheet, Scenario Script, UI Mockup, System Diagram, Prompt Definition,
   Knowledge Base, Other. Directories always carry ` + "`" + `Directory` + "`" + `.
5. **tags** is always present and may be empty. Tags are trimmed; empty tags are dropped.
6. **Strings** containing any of ` + "`" + `#:-[]{},&*!|>%@'"?` + "`" + ` or starting with a digit
   are single-quoted. Multi-line text uses a ` + "`" + `|-` + "`" + ` block.
7. **Optional keys** (originalMimeType, aiSummary, qrDecodedValue, relationships)
   are omitted when empty.

The JSON Schema of the manifest is served by the ` + "`" + `get_manifest_contract` + "`" + `
tool and the ` + "`" + `satd://manifest-schema` + "`" + ` resource.
`
