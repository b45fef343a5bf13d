// Package schema validates decoded frontmatter against declared shapes.
//
// A shape is built from small combinators:
//   - [String] accepts string values only
//   - [CoerceDate] turns date strings, timestamps and Unix milliseconds into time.Time
//   - [Image] hands the reference to an [ImageResolver] capability
//   - [Optional] lets a field be absent without producing a value
//   - [Object] checks a map field by field and strips unknown keys
//
// Every failure is reported as an [Issue] naming the field, and all issues
// of one object are collected into a single [*Error].
package schema
