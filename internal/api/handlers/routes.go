package handlers

import (
	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/core"
	"sprinklerops/internal/types"
)

// RegisterV1 builds every domain handler against the server's dependencies
// and returns the /v1 route registrar for core.Server. Registration and
// login are public; everything else sits behind the auth middleware, with
// destructive and team-management routes additionally role-gated.
func RegisterV1(srv *core.Server) func(chi.Router) {
	authH := NewAuthHandler(srv.Auth, srv.Store, srv.Validator, srv.Logger)
	clientH := NewClientHandler(srv.Store, srv.Validator, srv.Logger)
	siteH := NewSiteHandler(srv.Store, srv.Validator, srv.Logger)
	inspectionH := NewInspectionHandler(srv.Store, srv.Validator, nil, srv.Logger)
	estimateH := NewEstimateHandler(srv.Store, srv.Validator, nil, srv.Logger)
	workOrderH := NewWorkOrderHandler(srv.Store, srv.Validator, nil, srv.Logger)
	scheduleH := NewScheduleHandler(srv.Store, srv.Validator, srv.Logger)
	userH := NewUserHandler(srv.Store, srv.Validator, srv.Logger)

	return func(r chi.Router) {
		authH.PublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(srv.AuthMiddleware)

			authH.Routes(r)
			clientH.Routes(r)
			siteH.Routes(r)
			inspectionH.Routes(r)
			estimateH.Routes(r)
			workOrderH.Routes(r)
			scheduleH.Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(srv.RequireRole(types.RoleOwner, types.RoleAdmin))
				userH.Routes(r)
			})
		})
	}
}
