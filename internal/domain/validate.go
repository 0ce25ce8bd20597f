package domain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord marks records rejected at the collector boundary.
var ErrInvalidRecord = errors.New("invalid news record")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("news_source", func(fl validator.FieldLevel) bool {
			return Source(fl.Field().String()).Valid()
		})
	})
	return validate
}

// ValidateRecord rejects records missing id, source, url or publication date.
func ValidateRecord(r NewsRecord) error {
	if err := recordValidator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %s", ErrInvalidRecord, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.PublishedAt.IsZero() {
		return fmt.Errorf("%w: field PublishedAt is required", ErrInvalidRecord)
	}
	return nil
}
