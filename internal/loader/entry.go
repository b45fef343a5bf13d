package loader

import (
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is one validated content file.
type Entry struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	File       string         `json:"file"`
	Data       map[string]any `json:"data"`
	Body       string         `json:"-"`
	HTML       string         `json:"html,omitempty"`
	Digest     string         `json:"digest"`
}

// Title returns the title field, or a title derived from the entry ID when
// the collection has none.
func (e Entry) Title() string {
	if t, ok := e.Data["title"].(string); ok && t != "" {
		return t
	}
	base := strings.NewReplacer("-", " ", "_", " ").Replace(path.Base(e.ID))
	return cases.Title(language.English).String(base)
}

// Date returns the named date field if the entry has one.
func (e Entry) Date(field string) (time.Time, bool) {
	t, ok := e.Data[field].(time.Time)
	return t, ok
}

// EntryError reports a problem with a single content file.
type EntryError struct {
	Collection string
	File       string
	Err        error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Collection, e.File, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
