package domain

// TempFile is a transient binary payload (audio, pdf, slides) staged
// during ingestion. It is not indexed and not part of any query; the
// ingesting workflow owns its lifecycle and must delete it, including on
// error paths.
type TempFile struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Blob []byte `json:"blob"`
}
