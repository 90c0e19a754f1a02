package controllers

import (
	"net/http"

	"github.com/angelmondragon/mygros-backend/api/middleware"
	"github.com/angelmondragon/mygros-backend/api/responses"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

// requireActor returns the authenticated caller or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (middleware.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
		return middleware.Actor{}, false
	}
	return actor, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
