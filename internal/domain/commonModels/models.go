package commonModels

// Ownership is access-control metadata attached at upload time and carried
// unchanged through every pipeline stage.
type Ownership struct {
	UserId   string `json:"user_id"`
	OrgTag   string `json:"org_tag"`
	IsPublic bool   `json:"is_public"`
}

// RetrievalUnit is one index-ready span of text. UnitId is sequential per
// file, starting at 1, continuous across parent chunk boundaries.
type RetrievalUnit struct {
	FileMd5      string    `json:"file_md5"`
	UnitId       int       `json:"chunk_id"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"-"`
	ModelVersion string    `json:"model_version"`
	Ownership
}
