// Package mailbox reads an exported .eml corpus into EmailDocument
// values. It owns header decoding, MIME body extraction, and HTML
// stripping; the rest of the pipeline only reads the parsed fields.
package mailbox

import "time"

// EmailDocument is the parsed representation of one exported message.
type EmailDocument struct {
	Subject    string
	Sender     string
	Date       time.Time // zero when the Date header was absent or unparseable
	Body       string    // cleaned text body
	SourceFile string    // base filename of the .eml file
}

// HasDate reports whether a usable send date was parsed.
func (d EmailDocument) HasDate() bool {
	return !d.Date.IsZero()
}
