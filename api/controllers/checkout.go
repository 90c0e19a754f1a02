package controllers

import (
	"net/http"

	"github.com/angelmondragon/mygros-backend/api/responses"
	"github.com/angelmondragon/mygros-backend/api/validators"
	"github.com/angelmondragon/mygros-backend/internal/checkout"
	"github.com/angelmondragon/mygros-backend/internal/orders"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

type checkoutRequest struct {
	Zone          enums.DeliveryZone  `json:"delivery_zone" validate:"required,oneof=local national"`
	Address       string              `json:"delivery_address" validate:"required,max=500"`
	City          string              `json:"delivery_city" validate:"required,max=120"`
	PostalCode    string              `json:"delivery_postal_code" validate:"required,max=10"`
	Latitude      *float64            `json:"delivery_latitude,omitempty" validate:"omitempty,latitude"`
	Longitude     *float64            `json:"delivery_longitude,omitempty" validate:"omitempty,longitude"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required,oneof=card credit_30 credit_60"`
	TimeSlot      *enums.TimeSlot     `json:"delivery_time_slot,omitempty" validate:"omitempty,oneof=morning afternoon"`
	Notes         *string             `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

func (c checkoutRequest) toInput() checkout.Input {
	return checkout.Input{
		Zone: c.Zone,
		Address: orders.DeliveryAddress{
			Address:    c.Address,
			City:       c.City,
			PostalCode: c.PostalCode,
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
		},
		PaymentMethod: c.PaymentMethod,
		TimeSlot:      c.TimeSlot,
		Notes:         c.Notes,
	}
}

// Checkout converts the buyer's cart into a pending order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), checkout.Buyer{UserID: actor.UserID, CompanyID: actor.CompanyID}, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), order.ID.String()), "checkout.completed")
		}
		responses.WriteCreated(w, order)
	}
}
