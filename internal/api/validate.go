package api

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is a package-wide singleton, matching the corpus's
// convention of building one *validator.Validate and reusing it (tag
// caching inside the library makes construction non-trivial to repeat
// per request).
var (
	validatorInstance *validator.Validate
	validatorOnce     sync.Once
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validatorInstance = v
	})
	return validatorInstance
}

// validateStruct runs go-playground/validator tag validation and turns the
// first failing field into a human-readable message.
func validateStruct(req interface{}) error {
	if err := getValidator().Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &fieldError{field: fe.Field(), tag: fe.Tag(), param: fe.Param()}
		}
		return err
	}
	return nil
}

type fieldError struct {
	field, tag, param string
}

func (e *fieldError) Error() string {
	switch e.tag {
	case "required":
		return e.field + " is required"
	case "min":
		return e.field + " must have at least " + e.param + " item(s)"
	default:
		return e.field + " failed " + e.tag + " validation"
	}
}
