package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// validateParams runs struct tag validation and reports failures as ErrValidation
func validateParams(params any) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return validationError("%s", strings.Join(msgs, "; "))
	}
	return validationError("%v", err)
}

// isWholeCents reports whether amount has at most two decimal places.
// Money columns are NUMERIC(18,2) and would round anything finer.
func isWholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(2))
}
