// Package loader turns the files selected by a collection definition into
// validated entries.
//
// For every file below the definition's base that matches its pattern the
// loader splits YAML frontmatter from the body, validates the frontmatter
// against the collection schema (with image references resolved relative
// to the file), and renders the body to HTML. Problems are reported per
// file as *EntryError values; LoadCollection and LoadAll join them so one
// run shows every offending file and field.
package loader
