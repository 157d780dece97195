package ir

// Version constants for persisted records.
const (
	// RecordVersion is the version of the plain vault/provenance record layout.
	RecordVersion = "1"

	// PresentationContext is the JSON-LD context written on root documents.
	PresentationContext = "http://iiif.io/api/presentation/3/context.json"
)
