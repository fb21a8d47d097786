package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"fsscompiler/internal/failure"
)

type document struct {
	Functions []wireCall `json:"functions"`
}

// wireCall decodes parameters through pointers so a null value is told
// apart from an empty string.
type wireCall struct {
	Name       string             `json:"name"`
	Function   string             `json:"function"`
	Parameters map[string]*string `json:"parameters"`
}

// Load parses text into a Graph.
//
// Unknown members are ignored. A missing or null "functions" member yields an
// empty graph. Anything that is not a single JSON object, or whose members have
// the wrong JSON types, is a *failure.ParseError.
func Load(text []byte) (*Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("empty document", err)
		}
		return nil, malformed(err.Error(), err)
	}
	// Ensure there is no trailing garbage (including a second JSON value).
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return nil, malformed("trailing data after document", nil)
		}
		return nil, malformed(err.Error(), err)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, malformed("document must be a JSON object", nil)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &failure.ParseError{Code: failure.CodeSchemaViolation, Message: err.Error(), Cause: err}
		}
		return nil, malformed(err.Error(), err)
	}

	calls := make([]FunctionCall, 0, len(doc.Functions))
	for i, call := range doc.Functions {
		if call.Name == "" {
			return nil, &failure.ParseError{Code: failure.CodeSchemaViolation, Message: fmt.Sprintf("functions[%d].name is required", i)}
		}
		if call.Function == "" {
			return nil, &failure.ParseError{Code: failure.CodeSchemaViolation, Message: fmt.Sprintf("functions[%d].function is required", i)}
		}
		var params map[string]string
		if call.Parameters != nil {
			params = make(map[string]string, len(call.Parameters))
		}
		for k, v := range call.Parameters {
			if v == nil {
				return nil, &failure.ParseError{Code: failure.CodeSchemaViolation, Message: fmt.Sprintf("functions[%d].parameters.%s must be a string, not null", i, k)}
			}
			params[k] = *v
		}
		calls = append(calls, FunctionCall{Name: call.Name, Function: call.Function, Parameters: params})
	}
	return &Graph{Calls: calls}, nil
}

// LoadFile reads and parses the document at path. A read failure is returned
// as a plain error; parse failures are *failure.ParseError.
func LoadFile(path string) (*Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Load(b)
}

func malformed(msg string, cause error) error {
	return &failure.ParseError{Code: failure.CodeMalformedDocument, Message: msg, Cause: cause}
}
