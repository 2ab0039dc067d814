package model

// EncodedReadme is the README payload as returned by the upstream content API,
// before decoding. Content is empty when the upstream envelope had no content field.
type EncodedReadme struct {
	Path     string
	Encoding string // "base64" for the GitHub contents API.
	Content  string
}

// ReadmeContent is the decoded UTF-8 README text.
type ReadmeContent struct {
	Raw string
}
