// Package sitecontent declares the linnemanlabs content collections and
// the typed records page code reads from them.
package sitecontent

import (
	"sync"

	"github.com/keithlinneman/linnemanlabs-content/internal/collection"
	"github.com/keithlinneman/linnemanlabs-content/internal/schema"
)

const (
	About    = "about"
	Blog     = "blog"
	Projects = "projects"
)

func aboutSchema(c collection.SchemaContext) *schema.ObjectSchema {
	return schema.Object(
		schema.F("title", schema.String()),
		schema.F("description", schema.String()),
		schema.F("updatedDate", schema.Optional(schema.CoerceDate())),
		schema.F("heroImage", schema.Optional(c.Image())),
	)
}

func blogSchema(c collection.SchemaContext) *schema.ObjectSchema {
	return schema.Object(
		schema.F("title", schema.String()),
		schema.F("description", schema.String()),
		schema.F("pubDate", schema.CoerceDate()),
		schema.F("updatedDate", schema.Optional(schema.CoerceDate())),
		schema.F("heroImage", schema.Optional(c.Image())),
	)
}

// projects carry pubDate for ordering only.
func projectSchema(c collection.SchemaContext) *schema.ObjectSchema {
	return schema.Object(
		schema.F("title", schema.String()),
		schema.F("description", schema.String()),
		schema.F("pubDate", schema.CoerceDate()),
		schema.F("heroImage", schema.Optional(c.Image())),
	)
}

// Definitions returns the site collections in registration order.
func Definitions() []collection.Definition {
	return []collection.Definition{
		collection.MustDefine(About, ".", "about.{md,mdx}", aboutSchema),
		collection.MustDefine(Blog, "blog", "**/*.{md,mdx}", blogSchema),
		collection.MustDefine(Projects, "projects", "**/*.md", projectSchema),
	}
}

var registry = sync.OnceValue(func() *collection.Registry {
	return collection.MustNew(Definitions()...)
})

// Registry returns the site's collection registry. It is built once and
// shared; it cannot be modified.
func Registry() *collection.Registry { return registry() }
