// Package validator wires go-playground/validator into Gin's binding engine
// and turns validation failures into field maps for the response envelope.
package validator

import (
	"errors"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/stemsi/exam-engine/internal/model"
)

// TagOptionKey accepts one of the answer option keys of a paper item.
const TagOptionKey = "option_key"

var trans ut.Translator

// Setup registers json field naming, English messages and the exam tags on
// Gin's validator. Call once at startup before serving.
func Setup() {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(jsonName)

	enLocale := en.New()
	trans, _ = ut.New(enLocale, enLocale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	_ = v.RegisterValidation(TagOptionKey, func(fl govalidator.FieldLevel) bool {
		return slices.Contains(model.OptionKeys, fl.Field().String())
	})
	_ = v.RegisterTranslation(TagOptionKey, trans,
		func(t ut.Translator) error {
			return t.Add(TagOptionKey, "{0} must be one of "+strings.Join(model.OptionKeys, ", "), true)
		},
		func(t ut.Translator, fe govalidator.FieldError) string {
			msg, _ := t.T(TagOptionKey, fe.Field())
			return msg
		},
	)
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// TranslateErrors maps a binding error to json field names. Anything that is
// not a validation error is reported under "detail".
func TranslateErrors(err error) map[string]string {
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		if errors.Is(err, io.EOF) {
			return map[string]string{"detail": "request body is empty"}
		}
		return map[string]string{"detail": err.Error()}
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if trans == nil {
			fields[fe.Field()] = fe.Error()
			continue
		}
		fields[fe.Field()] = fe.Translate(trans)
	}
	return fields
}

// Bind decodes the JSON body into dst and validates it.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
