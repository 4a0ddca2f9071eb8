package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errEmptyPayload = errors.New("payload is empty")

// ParseExpected decodes the human-provided expected JSON. Numbers keep their
// literal text. Malformed input returns a *ParseError with its position.
func ParseExpected(data []byte) (any, error) {
	return parseJSON(SourceExpected, data)
}

func parseJSON(source string, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Source: source, Line: 1, Column: 1, Err: errEmptyPayload}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, newParseError(source, data, err, dec.InputOffset())
	}
	if _, err := dec.Token(); err != io.EOF {
		off := dec.InputOffset()
		return nil, newParseError(source, data, errors.New("unexpected data after top-level value"), off)
	}
	return v, nil
}

func newParseError(source string, data []byte, err error, fallback int64) *ParseError {
	off := fallback
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		off = syntaxErr.Offset
	case errors.As(err, &typeErr):
		off = typeErr.Offset
	case errors.Is(err, io.ErrUnexpectedEOF):
		off = int64(len(data))
	}
	line, col := position(data, off)
	return &ParseError{Source: source, Line: line, Column: col, Offset: off, Err: err}
}

// position converts a byte offset to a 1-based line and column.
func position(data []byte, off int64) (int, int) {
	if off > int64(len(data)) {
		off = int64(len(data))
	}
	if off < 0 {
		off = 0
	}
	prefix := data[:off]
	line := bytes.Count(prefix, []byte{'\n'}) + 1
	col := int(off) - bytes.LastIndexByte(prefix, '\n')
	if col < 1 {
		col = 1
	}
	return line, col
}
