package mailbox

import (
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	htmlTagRE    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	htmlEntityRE = regexp.MustCompile(`&(nbsp|amp|lt|gt|quot|#\d+);`)
	blankRunRE   = regexp.MustCompile(`\n{3,}`)
)

// ParseFile parses one .eml file. Messages that cannot be parsed at all
// return an error; a missing or unparseable Date header is tolerated
// and leaves Date zero.
func ParseFile(path string) (EmailDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return EmailDocument{}, err
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return EmailDocument{}, err
	}

	doc := EmailDocument{
		Subject:    decodeHeader(msg.Header.Get("Subject")),
		Sender:     decodeHeader(msg.Header.Get("From")),
		SourceFile: filepath.Base(path),
	}
	if date, err := msg.Header.Date(); err == nil {
		doc.Date = date
	}
	doc.Body = strings.TrimSpace(extractBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body))
	return doc, nil
}

// decodeHeader decodes RFC 2047 encoded words, falling back to the raw
// value when decoding fails.
func decodeHeader(raw string) string {
	dec := mime.WordDecoder{}
	decoded, err := dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// extractBody walks the message body, concatenating text/plain parts
// and tag-stripped text/html parts.
func extractBody(contentType, transferEncoding string, body io.Reader) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return ""
		}
		var out strings.Builder
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			out.WriteString(extractBody(
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part,
			))
			out.WriteString("\n")
		}
		return out.String()
	}

	raw, err := io.ReadAll(decodeTransfer(transferEncoding, body))
	if err != nil && len(raw) == 0 {
		return ""
	}
	text := string(raw)

	switch {
	case strings.HasPrefix(mediaType, "text/html"):
		return StripHTML(text)
	case strings.HasPrefix(mediaType, "text/plain"):
		return text
	default:
		return ""
	}
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// StripHTML removes tags and common entities from an HTML body,
// collapsing blank-line runs.
func StripHTML(html string) string {
	text := htmlTagRE.ReplaceAllString(html, " ")
	text = htmlEntityRE.ReplaceAllStringFunc(text, func(e string) string {
		switch e {
		case "&nbsp;":
			return " "
		case "&amp;":
			return "&"
		case "&lt;":
			return "<"
		case "&gt;":
			return ">"
		case "&quot;":
			return `"`
		default:
			return " "
		}
	})
	text = blankRunRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
