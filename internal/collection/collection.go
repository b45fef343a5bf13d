package collection

import (
	"errors"

	"github.com/keithlinneman/linnemanlabs-content/internal/schema"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

var (
	// ErrDuplicateCollection is returned by New when two definitions share
	// a name.
	ErrDuplicateCollection = errors.New("duplicate collection name")
	ErrInvalidDefinition   = errors.New("invalid collection definition")
)

// SchemaContext carries the capabilities a schema factory may use while
// building the shape for one entry.
type SchemaContext struct {
	images schema.ImageResolver
}

// NewSchemaContext returns a context whose Image schema resolves through r.
func NewSchemaContext(r schema.ImageResolver) SchemaContext {
	return SchemaContext{images: r}
}

// Image returns a schema for an image reference relative to the entry.
func (c SchemaContext) Image() schema.Schema { return schema.Image(c.images) }

// SchemaFunc builds the frontmatter shape of a collection. It is called
// once per entry so image references can resolve against that entry.
type SchemaFunc func(SchemaContext) *schema.ObjectSchema

// Definition declares one content collection.
type Definition struct {
	Name   string     `mapstructure:"name" validate:"required,max=64,collection_name"`
	Loader GlobLoader `mapstructure:"loader"`
	Schema SchemaFunc `mapstructure:"schema" validate:"required"`
}

// Define builds a validated collection definition.
func Define(name, sourceBase, filePattern string, fn SchemaFunc) (Definition, error) {
	def := Definition{
		Name:   name,
		Loader: GlobLoader{Base: sourceBase, Pattern: filePattern},
		Schema: fn,
	}
	if err := validateStruct(def); err != nil {
		return Definition{}, xerrors.Wrapf(errors.Join(ErrInvalidDefinition, err), "collection %q", name)
	}

	loader, err := compileLoader(sourceBase, filePattern)
	if err != nil {
		return Definition{}, xerrors.Wrapf(errors.Join(ErrInvalidDefinition, err), "collection %q", name)
	}
	def.Loader = loader

	return def, nil
}

// MustDefine is Define for static definitions; it panics on error.
func MustDefine(name, sourceBase, filePattern string, fn SchemaFunc) Definition {
	def, err := Define(name, sourceBase, filePattern, fn)
	if err != nil {
		panic(err)
	}
	return def
}

// Shape builds the collection schema with images resolved through r.
func (d Definition) Shape(r schema.ImageResolver) *schema.ObjectSchema {
	return d.Schema(NewSchemaContext(r))
}
