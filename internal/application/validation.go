package application

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"servicegraph/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func queryValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(validateWindow, domain.Query{})
	})
	return validate
}

func validateWindow(sl validator.StructLevel) {
	q := sl.Current().Interface().(domain.Query)
	if q.StartDate != nil && q.EndDate != nil && !q.StartDate.Before(*q.EndDate) {
		sl.ReportError(q.EndDate, "end_date", "EndDate", "after_start", "")
	}
}

// fieldNames maps struct fields to the names used in error messages
var fieldNames = map[string]string{
	"ProjectID":    "project ID",
	"FromTypes":    "source node types",
	"ToTypes":      "target node types",
	"EdgeStatuses": "edge statuses",
	"EndDate":      "end date",
	"MinVolume":    "minimum volume",
}

// ValidateQuery checks a query before it is sent to a data source.
// The first failing field is returned as a ValidationError.
func ValidateQuery(q domain.Query) error {
	err := queryValidator().Struct(q)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "query", Message: err.Error()}
	}

	fe := verrs[0]
	field := fe.StructField()
	if i := strings.Index(field, "["); i >= 0 {
		field = field[:i]
	}
	name := fieldNames[field]
	if name == "" {
		name = field
	}
	return &ValidationError{Field: field, Message: describe(name, fe)}
}

func describe(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s contains unknown value %v", name, fe.Value())
	case "after_start":
		return fmt.Sprintf("%s must be after the start date", name)
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

