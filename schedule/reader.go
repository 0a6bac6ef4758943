// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package schedule

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformed indicates the source as a whole cannot be read. Unlike a bad
// record, it ends the parse.
var ErrMalformed = errors.New("malformed schedule source")

const (
	xmlRootElement   = "MBS_XML"
	xmlRecordElement = "Data"
	jsonItemsKey     = "MBS_Items"
)

// Reader yields raw records from a schedule source in file order.
type Reader interface {
	// Next returns the next record, or io.EOF when the source is exhausted.
	// Any other error is structural and the reader must not be used again.
	Next() (*Record, error)
	Close() error
}

// Open detects the format of the file at path and returns a streaming reader.
func Open(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileReader{Reader: r, file: f}, nil
}

// NewReader detects the format of src from its first significant byte:
// '<' for the XML export, '{' or '[' for the JSON export.
func NewReader(src io.Reader) (Reader, error) {
	br := bufio.NewReader(src)
	first, err := peekSignificant(br)
	if err != nil {
		return nil, err
	}
	switch first {
	case '<':
		return newXMLReader(br)
	case '{', '[':
		return newJSONReader(br)
	}
	return nil, fmt.Errorf("%w: unrecognized format (starts with %q)", ErrMalformed, first)
}

func peekSignificant(br *bufio.Reader) (byte, error) {
	// Skip a UTF-8 byte order mark
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	for {
		b, err := br.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: empty source", ErrMalformed)
			}
			return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			br.Discard(1)
			continue
		}
		return b[0], nil
	}
}

type fileReader struct {
	Reader
	file *os.File
}

func (f *fileReader) Close() error {
	f.Reader.Close()
	return f.file.Close()
}

type xmlReader struct {
	dec   *xml.Decoder
	index int
	done  bool
}

func newXMLReader(src io.Reader) (*xmlReader, error) {
	dec := xml.NewDecoder(src)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != xmlRootElement {
				return nil, fmt.Errorf("%w: root element is <%s>, want <%s>", ErrMalformed, start.Name.Local, xmlRootElement)
			}
			return &xmlReader{dec: dec}, nil
		}
	}
}

func (r *xmlReader) Next() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: unexpected end of document", ErrMalformed)
			}
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != xmlRecordElement {
				if err := r.dec.Skip(); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
				}
				continue
			}
			rec := &Record{}
			if err := r.dec.DecodeElement(rec, &t); err != nil {
				return nil, fmt.Errorf("%w: record %d: %w", ErrMalformed, r.index, err)
			}
			rec.Index = r.index
			r.index++
			return rec, nil
		case xml.EndElement:
			// Only the root can close at this depth
			r.done = true
			return nil, io.EOF
		}
	}
}

func (r *xmlReader) Close() error { return nil }

type jsonReader struct {
	dec   *json.Decoder
	index int
	done  bool
}

func newJSONReader(src io.Reader) (*jsonReader, error) {
	dec := json.NewDecoder(src)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if tok == json.Delim('[') {
		return &jsonReader{dec: dec}, nil
	}

	// Object form: find the items array, skipping other keys
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if key == jsonItemsKey {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
			}
			if tok != json.Delim('[') {
				return nil, fmt.Errorf("%w: %s is not an array", ErrMalformed, jsonItemsKey)
			}
			return &jsonReader{dec: dec}, nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	return nil, fmt.Errorf("%w: missing %s", ErrMalformed, jsonItemsKey)
}

func (r *jsonReader) Next() (*Record, error) {
	if r.done || !r.dec.More() {
		r.done = true
		return nil, io.EOF
	}
	var raw jsonRecord
	if err := r.dec.Decode(&raw); err != nil {
		r.done = true
		return nil, fmt.Errorf("%w: record %d: %w", ErrMalformed, r.index, err)
	}
	rec := raw.record(r.index)
	r.index++
	return rec, nil
}

func (r *jsonReader) Close() error { return nil }
