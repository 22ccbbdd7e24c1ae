package app

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"live-quiz-service/internal/domain"
)

var validate = validator.New()

// validateStruct runs struct tag validation and folds failures into ErrInvalidInput.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid("%v", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	return domain.Invalid("%s", strings.Join(fields, ", "))
}
