package common

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GenericEchoValidator validates request structs using their `validate` tags and reports
// failing fields by their JSON name.
type GenericEchoValidator struct {
	Validator *validator.Validate
	once      sync.Once
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	gv.once.Do(func() {
		if gv.Validator == nil {
			gv.Validator = validator.New()
		}
		gv.Validator.RegisterTagNameFunc(jsonFieldName)
	})

	err := gv.Validator.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		problems := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid request body: "+strings.Join(problems, ", "))
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}
