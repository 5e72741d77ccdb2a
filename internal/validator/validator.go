package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// TagSingleCorrect validates that exactly one element of a slice is flagged correct.
const TagSingleCorrect = "single_correct"

// CorrectFlagger is implemented by answer payloads checked by single_correct.
type CorrectFlagger interface {
	Correct() bool
}

var (
	// trans is the singleton English translator for validation errors.
	trans ut.Translator
	once  sync.Once
)

// Setup registers the validator with English translations and custom rules
// on Gin's binding engine. Safe to call more than once.
func Setup() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation(TagSingleCorrect, singleCorrect)
		_ = v.RegisterTranslation(TagSingleCorrect, trans,
			func(ut ut.Translator) error {
				return ut.Add(TagSingleCorrect, "{0} must have exactly one correct answer", true)
			},
			func(ut ut.Translator, fe govalidator.FieldError) string {
				msg, _ := ut.T(TagSingleCorrect, fe.Field())
				return msg
			},
		)
	})
}

// singleCorrect passes when exactly one slice element reports Correct().
func singleCorrect(fl govalidator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice && field.Kind() != reflect.Array {
		return false
	}

	correct := 0
	for i := 0; i < field.Len(); i++ {
		item, ok := field.Index(i).Interface().(CorrectFlagger)
		if !ok {
			return false
		}
		if item.Correct() {
			correct++
		}
	}
	return correct == 1
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			key := fe.Field()
			if ns := fe.Namespace(); strings.Contains(ns, "[") {
				// Keep the index for nested fields, e.g. answers[1].answer_text.
				key = ns[strings.Index(ns, ".")+1:]
			}
			fields[key] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
