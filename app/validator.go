package app

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
)

var validate *validator.Validate
var uniTrans *ut.UniversalTranslator

// addTranslation registers an english message for tag. The message may
// reference the field as {0} and the tag parameter as {1}.
func addTranslation(trans ut.Translator, tag, msg string) {
	validate.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
		return ut.Add(tag, msg, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(tag, fe.Field(), fe.Param())
		return t
	})
}

func init() {
	validate = validator.New()
	en := en.New()
	uniTrans = ut.New(en, en)
	enTrans, _ := uniTrans.GetTranslator("en")

	// report fields by their json name, or the lowercased field name
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name, _, _ := strings.Cut(field.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return strings.ToLower(field.Name)
	})

	validate.RegisterValidation("port", func(fl validator.FieldLevel) bool {
		port, ok := fl.Field().Interface().(int)
		if !ok {
			return false
		}
		return port > 0 && port <= 65535
	})

	addTranslation(enTrans, "required", "{0} is a required field")
	addTranslation(enTrans, "required_with", "{0} is required when {1} is set")
	addTranslation(enTrans, "port", "{0} must be a valid port number")
	addTranslation(enTrans, "oneof", "{0} must be one of [{1}]")
	addTranslation(enTrans, "gte", "{0} must be at least {1}")
	addTranslation(enTrans, "min", "{0} must be at least {1} characters long")
	addTranslation(enTrans, "max", "{0} must be at most {1} characters long")
}
