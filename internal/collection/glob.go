package collection

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// GlobLoader selects the files of a collection: every file below Base
// whose path relative to Base matches Pattern.
//
// Patterns use '/' as the separator, so '*' stays inside one directory and
// '**' crosses directories. Brace alternation ("*.{md,mdx}") is supported.
// A pattern starting with "**/" also matches files directly under Base.
type GlobLoader struct {
	Base    string `mapstructure:"base" validate:"required,fs_path"`
	Pattern string `mapstructure:"pattern" validate:"required"`

	matchers []glob.Glob
}

func compileLoader(base, pattern string) (GlobLoader, error) {
	gl := GlobLoader{Base: path.Clean(base), Pattern: pattern}

	patterns := []string{pattern}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok && rest != "" {
		patterns = append(patterns, rest)
	}

	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return GlobLoader{}, err
		}
		gl.matchers = append(gl.matchers, g)
	}

	return gl, nil
}

// Match reports whether rel, a slash-separated path relative to Base,
// belongs to the collection.
func (g GlobLoader) Match(rel string) bool {
	for _, m := range g.matchers {
		if m.Match(rel) {
			return true
		}
	}
	return false
}

// Compiled reports whether the loader came from Define.
func (g GlobLoader) Compiled() bool { return len(g.matchers) > 0 }
