package billing

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrymomot/retailplan/handler"
)

type SellerRequest struct {
	SellerID uuid.UUID `path:"sellerID" json:"-" validate:"required"`
}

// ActivateRequest targets a subscription by id or a template by id.
type ActivateRequest struct {
	SellerID       uuid.UUID `path:"sellerID" json:"-" validate:"required"`
	TemplateID     string    `json:"template_id" validate:"required_without=SubscriptionID,max=64"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
}

type PaymentRequest struct {
	SellerID       uuid.UUID `path:"sellerID" json:"-" validate:"required"`
	SubscriptionID uuid.UUID `path:"subscriptionID" json:"-" validate:"required"`
}

// AdjustRequest consumes (positive delta) or releases (negative delta) quota.
type AdjustRequest struct {
	SellerID uuid.UUID `path:"sellerID" json:"-" validate:"required"`
	Resource string    `json:"resource" validate:"required,oneof=customers products orders"`
	Delta    int64     `json:"delta"`
}

type CapacityRequest struct {
	SellerID uuid.UUID `path:"sellerID" validate:"required"`
	Resource string    `path:"resource" validate:"required,oneof=customers products orders"`
	Count    int64     `query:"count" validate:"gte=0"`
}

type PlansRequest struct {
	Active *bool `query:"active"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "path", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// validated rejects requests failing their struct tags with a 422.
func validated[R any]() handler.Decorator[handler.Context, R] {
	return func(next handler.HandlerFunc[handler.Context, R]) handler.HandlerFunc[handler.Context, R] {
		return func(ctx handler.Context, req R) handler.Response {
			if err := validate.Struct(req); err != nil {
				var fieldErrs validator.ValidationErrors
				if !errors.As(err, &fieldErrs) {
					return handler.Fail(err)
				}
				verr := handler.NewValidationError()
				for _, fe := range fieldErrs {
					verr.Add(fe.Field(), validationMessage(fe))
				}
				return handler.Fail(verr)
			}
			return next(ctx, req)
		}
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + fe.Param() + " is empty"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}
