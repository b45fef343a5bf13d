package schema

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Schema validates one decoded value and returns its normalized form.
type Schema interface {
	Parse(v any) (any, error)
}

// received names the dynamic type of v the way frontmatter authors see it.
func received(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case time.Time:
		return "date"
	case map[string]any, map[any]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func typeMismatch(want string, v any) error {
	return fail(CodeInvalidType, fmt.Sprintf("expected %s, received %s", want, received(v)))
}

type stringSchema struct{}

// String accepts only string values. Numbers and booleans are not
// converted.
func String() Schema { return stringSchema{} }

func (stringSchema) Parse(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeMismatch("string", v)
	}
	return s, nil
}

// dateLayouts are tried in order for string input. Layouts without a zone
// are interpreted as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2",
	"2006/1/2",
	time.RFC1123Z,
	time.RFC1123,
	"Mon Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

type dateSchema struct{}

// CoerceDate accepts a time.Time, a date string in one of the common
// layouts, or a number of milliseconds since the Unix epoch.
func CoerceDate() Schema { return dateSchema{} }

func (dateSchema) Parse(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		if t, ok := ParseDate(x); ok {
			return t, nil
		}
		return nil, fail(CodeInvalidDate, fmt.Sprintf("invalid date %q", x))
	case int:
		return fromMillis(int64(x))
	case int64:
		return fromMillis(x)
	case uint64:
		if x > maxDateMillis {
			return nil, invalidMillis(x)
		}
		return fromMillis(int64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > maxDateMillis {
			return nil, invalidMillis(x)
		}
		return fromMillis(int64(x))
	default:
		return nil, typeMismatch("date", v)
	}
}

// maxDateMillis is the largest distance from the epoch, in milliseconds,
// that a date may have: 100,000,000 days either side of 1970-01-01.
const maxDateMillis = 8.64e15

func fromMillis(ms int64) (any, error) {
	if ms > maxDateMillis || ms < -maxDateMillis {
		return nil, invalidMillis(ms)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func invalidMillis(v any) error {
	return fail(CodeInvalidDate, fmt.Sprintf("invalid date %v (out of range)", v))
}

// ParseDate parses s with the layouts accepted by CoerceDate.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ImageRef is a resolved hero image.
type ImageRef struct {
	Src    string `json:"src" mapstructure:"src"`
	Width  int    `json:"width,omitempty" mapstructure:"width"`
	Height int    `json:"height,omitempty" mapstructure:"height"`
	Format string `json:"format,omitempty" mapstructure:"format"`
	Remote bool   `json:"remote,omitempty" mapstructure:"remote"`
}

// ImageResolver turns an image reference from frontmatter into an ImageRef.
// Implementations decide what the reference is relative to.
type ImageResolver interface {
	ResolveImage(ref string) (ImageRef, error)
}

// ImageResolverFunc adapts a function into an ImageResolver.
type ImageResolverFunc func(ref string) (ImageRef, error)

func (f ImageResolverFunc) ResolveImage(ref string) (ImageRef, error) { return f(ref) }

type imageSchema struct{ r ImageResolver }

// Image validates an image reference through r.
func Image(r ImageResolver) Schema { return imageSchema{r: r} }

func (s imageSchema) Parse(v any) (any, error) {
	ref, ok := v.(string)
	if !ok {
		return nil, typeMismatch("image path", v)
	}
	if strings.TrimSpace(ref) == "" {
		return nil, fail(CodeInvalidImage, "image path is empty")
	}
	if s.r == nil {
		return nil, fail(CodeInvalidImage, "no image resolver configured")
	}
	img, err := s.r.ResolveImage(ref)
	if err != nil {
		return nil, fail(CodeInvalidImage, err.Error())
	}
	return img, nil
}

type optionalSchema struct{ inner Schema }

// Optional allows the field to be absent. Present values, including an
// explicit null, are still checked by s.
func Optional(s Schema) Schema { return optionalSchema{inner: s} }

func (o optionalSchema) Parse(v any) (any, error) { return o.inner.Parse(v) }

// IsOptional reports whether s was wrapped with Optional.
func IsOptional(s Schema) bool {
	_, ok := s.(optionalSchema)
	return ok
}
