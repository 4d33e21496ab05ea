package a2a

/*
Artifact is a named, ordered block of output content produced by a task.
Append indicates, when carried by a TaskArtifactUpdateEvent, whether the
parts concatenate onto an existing artifact sharing ArtifactID or replace
it outright.
*/
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Append      bool           `json:"append,omitempty"`
	LastChunk   *bool          `json:"lastChunk,omitempty"`
}

func NewFileArtifact(name string, mimeType string, data string) Artifact {
	return Artifact{
		ArtifactID: NewArtifactID(),
		Name:       &name,
		Parts: []Part{
			{
				Type: PartTypeFile,
				File: &FilePart{
					MimeType: &mimeType,
					Data:     data,
				},
			},
		},
	}
}
