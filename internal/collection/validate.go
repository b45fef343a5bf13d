package collection

import (
	"errors"
	"io/fs"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// definitionValidator checks Definition struct tags and renders failures
// as English messages.
type definitionValidator struct {
	v  *validator.Validate
	tr ut.Translator
}

// definitions is built on first use and shared; validator.Validate is safe
// for concurrent use once configured.
var definitions = sync.OnceValues(newDefinitionValidator)

func newDefinitionValidator() (*definitionValidator, error) {
	enLoc := en.New()
	tr, _ := ut.New(enLoc, enLoc).GetTranslator("en")
	dv := &definitionValidator{
		v:  validator.New(validator.WithRequiredStructEnabled()),
		tr: tr,
	}

	if err := entranslations.RegisterDefaultTranslations(dv.v, tr); err != nil {
		return nil, xerrors.Wrap(err, "register validator translations")
	}
	if err := dv.register("collection_name", "{0} must be lowercase letters, digits or dashes",
		func(fl validator.FieldLevel) bool { return namePattern.MatchString(fl.Field().String()) }); err != nil {
		return nil, err
	}
	if err := dv.register("fs_path", "{0} must be a clean slash-separated path inside the content root",
		func(fl validator.FieldLevel) bool { return fs.ValidPath(fl.Field().String()) }); err != nil {
		return nil, err
	}

	dv.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return "'" + strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0] + "'"
	})
	return dv, nil
}

func (dv *definitionValidator) register(tag, text string, fn validator.Func) error {
	if err := dv.v.RegisterValidation(tag, fn); err != nil {
		return xerrors.Wrapf(err, "register validation %s", tag)
	}

	err := dv.v.RegisterTranslation(
		tag,
		dv.tr,
		func(ut ut.Translator) error { return ut.Add(tag, text, false) },
		func(ut ut.Translator, fe validator.FieldError) string {
			translation, err := ut.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return translation
		},
	)
	return xerrors.Wrapf(err, "register translation %s", tag)
}

func validateStruct(s any) error {
	dv, err := definitions()
	if err != nil {
		return err
	}
	if err := dv.v.Struct(s); err != nil {
		return &definitionError{err: err, tr: dv.tr}
	}
	return nil
}

type definitionError struct {
	err error
	tr  ut.Translator
}

func (d *definitionError) Error() string {
	var errs validator.ValidationErrors
	if !errors.As(d.err, &errs) {
		return d.err.Error()
	}

	msgs := make([]string, 0, len(errs))
	for _, msg := range errs.Translate(d.tr) {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)

	return strings.Join(msgs, ", ")
}

func (d *definitionError) Unwrap() error { return d.err }
