package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// chatValidate is shared by every request; validator.Validate caches struct
// metadata and is safe for concurrent use.
var chatValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request invariants. It returns a validation *APIError
// listing every offending field.
func (r *ChatRequest) Validate() error {
	err := chatValidate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrInternal(fmt.Sprintf("validate request: %v", err)).WithCause(err)
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Loc:  fieldLocation(fe.Namespace()),
			Msg:  fieldMessage(fe),
			Type: fe.Tag(),
		})
	}
	return ErrValidation("Invalid request data").WithDetails(details).WithCause(err)
}

// fieldLocation turns "ChatRequest.history[1].role" into ["history", "1", "role"].
func fieldLocation(namespace string) []string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	loc := make([]string, 0, len(parts))
	for _, p := range parts {
		if i := strings.IndexByte(p, '['); i >= 0 && strings.HasSuffix(p, "]") {
			loc = append(loc, p[:i], p[i+1:len(p)-1])
			continue
		}
		loc = append(loc, p)
	}
	return loc
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field required"
	case "min":
		return "String should have at least " + fe.Param() + " " + plural(fe.Param(), "character")
	case "max":
		return "String should have at most " + fe.Param() + " " + plural(fe.Param(), "character")
	case "gte":
		return "Input should be greater than or equal to " + fe.Param()
	case "lte":
		return "Input should be less than or equal to " + fe.Param()
	case "oneof":
		return "Input should be " + strings.Join(quoteAll(strings.Fields(fe.Param())), " or ")
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

func plural(n, word string) string {
	if n == "1" {
		return word
	}
	return word + "s"
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Quote(v)
	}
	return out
}
