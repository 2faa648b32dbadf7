package models

// Attachment файл, пришедший вместе с сообщением.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}
