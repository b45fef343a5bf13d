package schema

import (
	"errors"
	"strings"
)

// Code classifies an Issue.
type Code string

const (
	CodeRequired     Code = "required"
	CodeInvalidType  Code = "invalid_type"
	CodeInvalidDate  Code = "invalid_date"
	CodeInvalidImage Code = "invalid_image"
)

// Issue is a single validation failure. Path is the dotted field path,
// empty for the value itself.
type Issue struct {
	Path    string `json:"path"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Code == CodeRequired {
		return "required field missing: " + i.Path
	}
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Error collects every Issue found while parsing one value.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}

// Has reports whether an issue with the given path and code was recorded.
func (e *Error) Has(path string, code Code) bool {
	for _, is := range e.Issues {
		if is.Path == path && is.Code == code {
			return true
		}
	}
	return false
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func fail(code Code, msg string) error {
	return &Error{Issues: []Issue{{Code: code, Message: msg}}}
}

// nest re-roots the issues of err under path. Errors that are not *Error
// become a single issue with the given fallback code.
func nest(path string, err error, fallback Code) []Issue {
	se, ok := AsError(err)
	if !ok {
		return []Issue{{Path: path, Code: fallback, Message: err.Error()}}
	}
	out := make([]Issue, len(se.Issues))
	for i, is := range se.Issues {
		p := path
		if is.Path != "" {
			p = path + "." + is.Path
		}
		out[i] = Issue{Path: p, Code: is.Code, Message: is.Message}
	}
	return out
}
