package collection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/linnemanlabs-content/internal/schema"
)

func postSchema(c SchemaContext) *schema.ObjectSchema {
	return schema.Object(
		schema.F("title", schema.String()),
		schema.F("pubDate", schema.CoerceDate()),
		schema.F("heroImage", schema.Optional(c.Image())),
	)
}

func TestDefine(t *testing.T) {
	t.Parallel()

	for uc, tc := range map[string]struct {
		name    string
		base    string
		pattern string
		fn      SchemaFunc
		expErr  string
	}{
		"valid definition":       {name: "blog", base: "blog", pattern: "**/*.{md,mdx}", fn: postSchema},
		"content root as base":   {name: "about", base: ".", pattern: "about.{md,mdx}", fn: postSchema},
		"dashes in name":         {name: "case-studies", base: "case-studies", pattern: "*.md", fn: postSchema},
		"missing name":           {base: "blog", pattern: "*.md", fn: postSchema, expErr: "'name' is a required field"},
		"upper case name":        {name: "Blog", base: "blog", pattern: "*.md", fn: postSchema, expErr: "'name' must be lowercase"},
		"missing base":           {name: "blog", pattern: "*.md", fn: postSchema, expErr: "'base' is a required field"},
		"absolute base":          {name: "blog", base: "/srv/blog", pattern: "*.md", fn: postSchema, expErr: "'base' must be a clean"},
		"base escaping the root": {name: "blog", base: "../blog", pattern: "*.md", fn: postSchema, expErr: "'base' must be a clean"},
		"missing pattern":        {name: "blog", base: "blog", fn: postSchema, expErr: "'pattern' is a required field"},
		"missing schema":         {name: "blog", base: "blog", pattern: "*.md", expErr: "'schema' is a required field"},
	} {
		t.Run(uc, func(t *testing.T) {
			def, err := Define(tc.name, tc.base, tc.pattern, tc.fn)

			if tc.expErr != "" {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrInvalidDefinition)
				assert.Contains(t, err.Error(), tc.expErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.name, def.Name)
			assert.Equal(t, tc.base, def.Loader.Base)
			assert.Equal(t, tc.pattern, def.Loader.Pattern)
			assert.True(t, def.Loader.Compiled())
		})
	}
}

func TestGlobLoaderMatch(t *testing.T) {
	t.Parallel()

	for uc, tc := range map[string]struct {
		pattern string
		rel     string
		exp     bool
	}{
		"nested md":                 {pattern: "**/*.{md,mdx}", rel: "2024/hello.md", exp: true},
		"deeply nested mdx":         {pattern: "**/*.{md,mdx}", rel: "a/b/c/post.mdx", exp: true},
		"top level file with **/":   {pattern: "**/*.{md,mdx}", rel: "hello.mdx", exp: true},
		"other extension":           {pattern: "**/*.{md,mdx}", rel: "hello.txt", exp: false},
		"mdx excluded by md only":   {pattern: "**/*.md", rel: "widget.mdx", exp: false},
		"md only nested":            {pattern: "**/*.md", rel: "tools/widget.md", exp: true},
		"single star stays in dir":  {pattern: "*.md", rel: "nested/widget.md", exp: false},
		"single star in dir":        {pattern: "*.md", rel: "widget.md", exp: true},
		"literal name alternatives": {pattern: "about.{md,mdx}", rel: "about.mdx", exp: true},
		"literal name mismatch":     {pattern: "about.{md,mdx}", rel: "about-me.md", exp: false},
	} {
		t.Run(uc, func(t *testing.T) {
			def, err := Define("test", ".", tc.pattern, postSchema)
			require.NoError(t, err)

			assert.Equal(t, tc.exp, def.Loader.Match(tc.rel))
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	about := MustDefine("about", ".", "about.{md,mdx}", postSchema)
	blog := MustDefine("blog", "blog", "**/*.{md,mdx}", postSchema)
	projects := MustDefine("projects", "projects", "**/*.md", postSchema)

	reg, err := New(about, blog, projects)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"about", "blog", "projects"}, reg.Names())

	got, ok := reg.Get("blog")
	require.True(t, ok)
	assert.Equal(t, "blog", got.Loader.Base)

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "projects", defs[2].Name)
}

func TestRegistryIsImmutable(t *testing.T) {
	t.Parallel()

	reg := MustNew(
		MustDefine("blog", "blog", "**/*.md", postSchema),
		MustDefine("projects", "projects", "**/*.md", postSchema),
	)

	names := reg.Names()
	names[0] = "changed"

	defs := reg.Definitions()
	defs[0].Name = "changed"
	defs[0].Loader.Base = "elsewhere"

	got, _ := reg.Get("blog")
	got.Loader.Base = "elsewhere"

	assert.Equal(t, []string{"blog", "projects"}, reg.Names())
	again, ok := reg.Get("blog")
	require.True(t, ok)
	assert.Equal(t, "blog", again.Name)
	assert.Equal(t, "blog", again.Loader.Base)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	blog := MustDefine("blog", "blog", "**/*.md", postSchema)
	other := MustDefine("blog", "posts", "**/*.md", postSchema)

	reg, err := New(blog, other)
	require.Error(t, err)
	assert.Nil(t, reg)
	require.ErrorIs(t, err, ErrDuplicateCollection)
	assert.Contains(t, err.Error(), `collection "blog"`)

	assert.Panics(t, func() { MustNew(blog, other) })
}

func TestRegistryRejectsUncompiledDefinitions(t *testing.T) {
	t.Parallel()

	_, err := New(Definition{Name: "blog", Schema: postSchema})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
}

func TestShapeBindsImageResolver(t *testing.T) {
	t.Parallel()

	def := MustDefine("blog", "blog", "**/*.md", postSchema)

	var asked string
	shape := def.Shape(schema.ImageResolverFunc(func(ref string) (schema.ImageRef, error) {
		asked = ref
		return schema.ImageRef{Src: "blog/" + ref, Width: 10, Height: 10, Format: "png"}, nil
	}))

	out, err := shape.ParseMap(map[string]any{
		"title":     "Hello",
		"pubDate":   "2024-01-01",
		"heroImage": "hero.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "hero.png", asked)
	assert.Equal(t, schema.ImageRef{Src: "blog/hero.png", Width: 10, Height: 10, Format: "png"}, out["heroImage"])
}

func TestMustDefinePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustDefine("", "blog", "*.md", postSchema) })
}
