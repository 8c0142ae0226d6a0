// Package input reads notification payloads supplied by producers.
package input

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/nudge/internal/model"
)

// maxInputSize bounds a single read.
const maxInputSize = 10 * 1024 * 1024

// AdapterError represents an input-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// ReadPayloads reads one payload or a list of payloads from r.
// JSON and YAML are both accepted. Payloads without a title are skipped.
func ReadPayloads(source string, r io.Reader) ([]model.Payload, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxInputSize)

	var data []byte
	for scanner.Scan() {
		data = append(data, scanner.Bytes()...)
		data = append(data, '\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, &AdapterError{Source: source, Message: "failed to read input", Err: err}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	payloads, err := parse(data)
	if err != nil {
		return nil, &AdapterError{Source: source, Message: "failed to parse input", Err: err}
	}

	valid := payloads[:0]
	for _, p := range payloads {
		p.Title = sanitizeString(p.Title)
		p.Message = sanitizeString(p.Message)
		if p.Validate() != nil {
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}

// parse accepts a sequence or a single mapping.
func parse(data []byte) ([]model.Payload, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var ps []model.Payload
		if err := node.Decode(&ps); err != nil {
			return nil, err
		}
		return ps, nil
	}

	var p model.Payload
	if err := node.Decode(&p); err != nil {
		return nil, err
	}
	return []model.Payload{p}, nil
}

// sanitizeString strips control characters other than newlines and tabs.
func sanitizeString(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}
