package fs

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/inkwell/pkg/core"
)

var (
	delimLF   = []byte("---\n")
	delimCRLF = []byte("---\r\n")
)

// ErrMalformed is returned for files whose frontmatter cannot be decoded.
var ErrMalformed = errors.New("malformed note file")

// frontmatter is the YAML header of a draft or note file.
type frontmatter struct {
	Title     string   `yaml:"title,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
	Favorited bool     `yaml:"favorited,omitempty"`
	SavedAt   string   `yaml:"saved_at,omitempty"`
}

// EncodeDraft renders a draft as Markdown with a YAML frontmatter header.
// The body follows the closing delimiter verbatim.
func EncodeDraft(d core.Draft) ([]byte, error) {
	fm := frontmatter{
		Title:     d.Title,
		Tags:      d.Tags,
		Favorited: d.Favorited,
	}
	if !d.SavedAt.IsZero() {
		fm.SavedAt = core.FormatTimestamp(d.SavedAt)
	}
	return encode(fm, d.Body)
}

// DecodeDraft parses a file written by EncodeDraft. A draft file without
// frontmatter or without saved_at is malformed.
func DecodeDraft(data []byte) (core.Draft, error) {
	fm, body, ok, err := decode(data)
	if err != nil {
		return core.Draft{}, err
	}
	if !ok || fm.SavedAt == "" {
		return core.Draft{}, fmt.Errorf("%w: missing saved_at", ErrMalformed)
	}

	savedAt, err := core.ParseTimestamp(fm.SavedAt)
	if err != nil {
		return core.Draft{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return core.Draft{
		Fields:  core.Fields{Title: fm.Title, Body: body, Tags: fm.Tags, Favorited: fm.Favorited},
		SavedAt: savedAt,
	}, nil
}

// EncodeFields renders editable note fields for an external editor.
func EncodeFields(f core.Fields) ([]byte, error) {
	return encode(frontmatter{Title: f.Title, Tags: f.Tags, Favorited: f.Favorited}, f.Body)
}

// DecodeFields parses a note file. Files without frontmatter are all body.
func DecodeFields(data []byte) (core.Fields, error) {
	fm, body, _, err := decode(data)
	if err != nil {
		return core.Fields{}, err
	}
	return core.Fields{Title: fm.Title, Body: body, Tags: fm.Tags, Favorited: fm.Favorited}, nil
}

func encode(fm frontmatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(delimLF)
	if !fm.empty() {
		buf.Write(header)
	}
	buf.Write(delimLF)
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// decode splits data into frontmatter and body. ok is false when the file
// has no frontmatter at all.
func decode(data []byte) (fm frontmatter, body string, ok bool, err error) {
	var rest []byte
	switch {
	case bytes.HasPrefix(data, delimLF):
		rest = data[len(delimLF):]
	case bytes.HasPrefix(data, delimCRLF):
		rest = data[len(delimCRLF):]
	default:
		return frontmatter{}, string(data), false, nil
	}

	header, content, found := cutDelimiter(rest)
	if !found {
		return frontmatter{}, "", false, fmt.Errorf("%w: frontmatter has no closing delimiter", ErrMalformed)
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return frontmatter{}, "", false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fm, string(content), true, nil
}

// cutDelimiter finds the closing "---" line. It may be the very first line
// when the header is empty.
func cutDelimiter(rest []byte) (header, content []byte, found bool) {
	for _, d := range [][]byte{delimLF, delimCRLF} {
		if bytes.HasPrefix(rest, d) {
			return nil, rest[len(d):], true
		}
	}
	for _, d := range [][]byte{delimLF, delimCRLF} {
		sep := append([]byte("\n"), d...)
		if i := bytes.Index(rest, sep); i >= 0 {
			return rest[:i+1], rest[i+len(sep):], true
		}
	}
	return nil, nil, false
}

func (fm frontmatter) empty() bool {
	return fm.Title == "" && len(fm.Tags) == 0 && !fm.Favorited && fm.SavedAt == ""
}
