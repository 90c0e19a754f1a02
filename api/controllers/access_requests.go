package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/mygros-backend/api/responses"
	"github.com/angelmondragon/mygros-backend/api/validators"
	"github.com/angelmondragon/mygros-backend/internal/accessrequests"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

type accessRequestBody struct {
	RequestedRole enums.Role `json:"requested_role" validate:"required"`
	Reason        *string    `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type reviewBody struct {
	Approve *bool   `json:"approve" validate:"required"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

func SubmitAccessRequest(svc accessrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "access request")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body accessRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Submit(r.Context(), accessrequests.SubmitInput{
			UserID:        actor.UserID,
			CurrentRole:   actor.Role,
			RequestedRole: body.RequestedRole,
			Reason:        body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, req)
	}
}

func ListMyAccessRequests(svc accessrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "access request")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		list, err := svc.ListMine(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminListAccessRequests(svc accessrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "access request")
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filters accessrequests.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.AccessRequestStatus(raw)
			filters.Status = &status
		}
		list, err := svc.List(r.Context(), page, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminReviewAccessRequest approves or rejects a pending request. Approval
// takes effect on the requester's next token refresh.
func AdminReviewAccessRequest(svc accessrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "access request")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reviewBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Review(r.Context(), accessrequests.ReviewInput{
			RequestID:  id,
			ReviewerID: actor.UserID,
			Approve:    *body.Approve,
			Note:       body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}
