package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/errors"
)

const (
	defaultTopN     = aggregate.Limit(10)
	maxGapTableRows = aggregate.Limit(50)
)

var queryValidator = newQueryValidator()

func newQueryValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("limit", func(fl validator.FieldLevel) bool {
		_, err := aggregate.ParseLimit(fl.Field().String())
		return err == nil
	})
	return v
}

// viewQuery is the sort and Top-N selection for one chart or table.
type viewQuery struct {
	Sort  string `validate:"omitempty,oneof=asc desc"`
	Limit string `validate:"omitempty,limit"`
}

type selection struct {
	dir   aggregate.Direction
	limit aggregate.Limit
}

func (q viewQuery) resolve(defaultLimit aggregate.Limit) (selection, error) {
	if err := queryValidator.Struct(q); err != nil {
		return selection{}, errors.ValidationWrap(err, validationMessage(err))
	}

	sel := selection{dir: aggregate.Descending, limit: defaultLimit}
	if q.Sort != "" {
		dir, err := aggregate.ParseDirection(q.Sort)
		if err != nil {
			return selection{}, errors.ValidationWrap(err, "invalid sort")
		}
		sel.dir = dir
	}
	if q.Limit != "" {
		limit, err := aggregate.ParseLimit(q.Limit)
		if err != nil {
			return selection{}, errors.ValidationWrap(err, "invalid limit")
		}
		sel.limit = limit
	}
	return sel, nil
}

func queryFrom(r *http.Request) viewQuery {
	q := r.URL.Query()
	return viewQuery{
		Sort:  strings.ToLower(strings.TrimSpace(q.Get("sort"))),
		Limit: strings.TrimSpace(q.Get("limit")),
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return "invalid query"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", strings.ToLower(fe.Field()), fe.Param()))
		case "limit":
			parts = append(parts, fmt.Sprintf("%s must be a positive integer or All", strings.ToLower(fe.Field())))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return strings.Join(parts, "; ")
}
