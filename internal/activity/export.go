package activity

// ExportRecord is one line of a JSONL export. The first line of a file is a
// header with TrailExport set and no entry.
type ExportRecord struct {
	// Header detection field - true only for header line
	TrailExport bool `json:"_trail_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	*Entry
}

// IsHeader reports whether r is the export header line.
func (r *ExportRecord) IsHeader() bool {
	return r.TrailExport
}
