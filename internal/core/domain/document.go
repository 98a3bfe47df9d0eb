package domain

// SynthesizedDocument is the single cohesive narrative produced from the
// AnalysisNote sequence of one run.
type SynthesizedDocument struct {
	// Markdown is the narrative text.
	Markdown string

	// NotesUsed is the number of non-empty notes folded into the narrative.
	NotesUsed int

	// Batches is the number of synthesis calls made (1 when no reduce was needed).
	Batches int
}

// IsEmpty reports whether the narrative has no content.
func (d SynthesizedDocument) IsEmpty() bool {
	return len(d.Markdown) == 0
}

// RenderedDocument is the final formatted AGENTS.md text of one run.
type RenderedDocument struct {
	// RepositoryName identifies the repository the document describes.
	RepositoryName string

	// Variant is the schema variant the document was rendered with.
	Variant SchemaVariant

	// Content is the document text.
	Content string
}

// CustomSection is a user-authored section of an existing document whose
// heading is not part of the schema. It is preserved verbatim on merge.
type CustomSection struct {
	// Heading is the section heading without the leading "## ".
	Heading string

	// Content is the section body.
	Content string
}
