package application

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
)

// ErrMalformedContent indicates the upstream README payload could not be
// decoded into UTF-8 text.
var ErrMalformedContent = errors.New("malformed readme content")

// DecodeContent base64-decodes an upstream README payload and checks that the
// result is valid UTF-8. Whitespace inside the payload (GitHub wraps base64 at
// 60 columns) is ignored.
func DecodeContent(encoded string) (model.ReadmeContent, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, encoded)

	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return model.ReadmeContent{}, fmt.Errorf("%w: base64: %w", ErrMalformedContent, err)
	}

	if !utf8.Valid(data) {
		return model.ReadmeContent{}, fmt.Errorf("%w: not valid UTF-8", ErrMalformedContent)
	}

	return model.ReadmeContent{Raw: string(data)}, nil
}

// decodeReadme checks the envelope encoding before decoding.
func decodeReadme(enc model.EncodedReadme) (model.ReadmeContent, error) {
	if enc.Encoding != "" && !strings.EqualFold(enc.Encoding, "base64") {
		return model.ReadmeContent{}, fmt.Errorf("%w: unsupported encoding %q", ErrMalformedContent, enc.Encoding)
	}
	return DecodeContent(enc.Content)
}
