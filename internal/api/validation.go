package api

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"venuebook/internal/service"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks a request DTO and reports the first failure with the kind
// the booking service would use for the same field.
func validateRequest(ctx context.Context, req any) error {
	err := validate.StructCtx(ctx, req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &service.Error{Kind: service.KindInvalidRequest, Message: "invalid request", Err: err}
	}

	fe := verrs[0]
	field := fe.Field()
	kind := service.KindInvalidRequest
	switch {
	case field == "date":
		kind = service.KindInvalidDate
	case strings.HasPrefix(field, "time_slot"):
		kind = service.KindInvalidSlot
	}
	return &service.Error{Kind: kind, Message: describe(fe), Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s allows at most %s entries", fe.Field(), fe.Param())
	case "gte", "gt":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
