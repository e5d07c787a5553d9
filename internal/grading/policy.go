package grading

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "gradecli/internal/errors"
	"gradecli/pkg/contracts/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateScale checks every band: bounds within 0..100, Low <= High and a
// non-empty label.
func ValidateScale(scale domain.ScaleRule) error {
	if len(scale) == 0 {
		return apperrors.NewValidationError("scale", "at least one band is required")
	}
	for i, b := range scale {
		b.Label = strings.TrimSpace(b.Label)
		if err := validatorInstance().Struct(b); err != nil {
			return bandError(i, err)
		}
	}
	return nil
}

// ValidatePolicy checks maxPoints and the scale.
func ValidatePolicy(p domain.GradingPolicy) error {
	if math.IsNaN(p.MaxPoints) || math.IsInf(p.MaxPoints, 0) || p.MaxPoints <= 0 {
		return apperrors.NewValidationError("max_points", "must be a positive number")
	}
	return ValidateScale(p.Scale)
}

func bandError(i int, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("scale[%d]", i), err.Error())
	}
	fe := verrs[0]
	field := fmt.Sprintf("scale[%d].%s", i, strings.ToLower(fe.Field()))
	switch fe.Tag() {
	case "required":
		return apperrors.NewValidationError(field, "label must not be empty")
	case "gtefield":
		return apperrors.NewValidationError(field, "high bound must not be lower than low bound")
	case "gte", "lte":
		return apperrors.NewValidationError(field, "bound must be between 0 and 100")
	}
	return apperrors.NewValidationError(field, fe.Error())
}
