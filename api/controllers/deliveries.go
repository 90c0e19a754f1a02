package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mygros-backend/api/responses"
	"github.com/angelmondragon/mygros-backend/api/validators"
	"github.com/angelmondragon/mygros-backend/internal/tracking"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

type advanceRequest struct {
	Status enums.TrackingStatus `json:"status" validate:"required"`
}

type locationRequest struct {
	Latitude        float64 `json:"latitude" validate:"latitude"`
	Longitude       float64 `json:"longitude" validate:"longitude"`
	CurrentLocation *string `json:"current_location,omitempty" validate:"omitempty,max=255"`
}

type assignRequest struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

type deliveryPage struct {
	Deliveries []tracking.DeliveryDTO `json:"deliveries"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type detailsRequest struct {
	Carrier           *string    `json:"carrier,omitempty" validate:"omitempty,max=100"`
	TrackingNumber    *string    `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	Notes             *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// DriverListDeliveries lists deliveries assigned to the caller. Delivered
// runs are hidden unless include_delivered=true.
func DriverListDeliveries(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		include, err := validators.ParseQueryBool(r, "include_delivered")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForDriver(r.Context(), actor.UserID, include != nil && *include)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func DriverSummary(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		summary, err := svc.DriverSummary(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// GetDelivery is shared by the driver and admin routes; drivers only see
// their own assignments.
func GetDelivery(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "trackingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.Get(r.Context(), tracking.Actor{UserID: actor.UserID, Role: actor.Role}, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// AdvanceDelivery moves a delivery to the requested status. The transition
// rules depend on the caller's role.
func AdvanceDelivery(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "trackingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body advanceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseTrackingStatus(string(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tracking status"))
			return
		}
		dto, err := svc.AdvanceStatus(r.Context(), tracking.AdvanceInput{
			TrackingID: id,
			Status:     status,
			Actor:      tracking.Actor{UserID: actor.UserID, Role: actor.Role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func UpdateDeliveryLocation(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "trackingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body locationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.UpdateLocation(r.Context(), tracking.LocationInput{
			TrackingID:      id,
			Actor:           tracking.Actor{UserID: actor.UserID, Role: actor.Role},
			Latitude:        body.Latitude,
			Longitude:       body.Longitude,
			CurrentLocation: body.CurrentLocation,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AdminListDeliveries(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filters tracking.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseTrackingStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}
		if filters.DriverID, err = validators.ParseQueryUUID(r, "driver_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, next, err := svc.ListAll(r.Context(), page, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deliveryPage{Deliveries: list, NextCursor: next})
	}
}

func AdminAssignDriver(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "trackingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body assignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.AssignDriver(r.Context(), tracking.AssignInput{TrackingID: id, DriverID: body.DriverID, AdminID: actor.UserID, AdminRole: actor.Role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func AdminUpdateDeliveryDetails(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "tracking")
			return
		}
		id, err := validators.URLParamUUID(r, "trackingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body detailsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.UpdateDetails(r.Context(), tracking.DetailsInput{
			TrackingID:        id,
			Carrier:           body.Carrier,
			TrackingNumber:    body.TrackingNumber,
			EstimatedDelivery: body.EstimatedDelivery,
			Notes:             body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
