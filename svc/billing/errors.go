package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/diary/pkg/handler"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

var ErrNoRecipient = errors.New("no email address for reminder recipient")

var (
	ErrPlanNotPurchasable = handler.NewHTTPError(http.StatusUnprocessableEntity, "plan_not_purchasable").
				WithMessage("This plan cannot be purchased.")
	ErrPaymentUnavailable = handler.NewHTTPError(http.StatusServiceUnavailable, "payment_unavailable").
				WithMessage(subscription.ErrPaymentUnavailable.Error())
	ErrPaymentDeclined = handler.NewHTTPError(http.StatusPaymentRequired, "payment_declined").
				WithMessage(subscription.ErrPaymentDeclined.Error())
	ErrInvalidSignature = handler.NewHTTPError(http.StatusBadRequest, "invalid_signature").
				WithMessage(subscription.ErrInvalidSignature.Error())
)

// MapError translates subscription errors into HTTP errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, subscription.ErrPlanNotFound):
		return handler.ErrNotFound.WithMessage(subscription.ErrPlanNotFound.Error())
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return handler.ErrNotFound.WithMessage(subscription.ErrSubscriptionNotFound.Error())
	case errors.Is(err, subscription.ErrPlanNotPurchasable):
		return ErrPlanNotPurchasable
	case errors.Is(err, subscription.ErrPaymentDeclined):
		return ErrPaymentDeclined
	case errors.Is(err, subscription.ErrPaymentUnavailable):
		return ErrPaymentUnavailable
	case errors.Is(err, subscription.ErrInvalidSignature):
		return ErrInvalidSignature
	}
	return err
}
