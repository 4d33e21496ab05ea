package a2a

import (
	"encoding/base64"

	"github.com/cohesivestack/valgo"
)

/*
Part is a discriminated union over Text, File and Data content. Exactly one
of Text, File, or Data is populated according to Type; this is enforced by
Validate rather than at the struct level, since the wire representation is
a flat JSON object with a "type" discriminator.
*/
type Part struct {
	Type PartType `json:"type"`

	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartType is the discriminator for a Part union.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

type FilePart struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Data     string  `json:"bytes,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Type: PartTypeFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewDataPart(data map[string]any) Part {
	return Part{Type: PartTypeData, Data: data}
}

/*
Validate checks that the content matching Type is actually populated. The
Request Handler does not call it; a Part that fails it is not turned into
a ContentTypeNotSupported error anywhere in this module.
*/
func (p Part) Validate() bool {
	switch p.Type {
	case PartTypeText:
		return valgo.Is(valgo.String(p.Text).Not().Blank()).Valid()
	case PartTypeFile:
		return p.File != nil && (p.File.Data != "" || p.File.URI != "")
	case PartTypeData:
		return p.Data != nil
	default:
		return false
	}
}
