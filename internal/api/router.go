package api

import (
	"net/http"

	"attendance-reconciler/internal/api/handler"
	"attendance-reconciler/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"
)

// RegisterRoutes mounts the attendance API under prefix plus the swagger UI.
func RegisterRoutes(r *router.Router, h *handler.AttendanceHandler, prefix string) {
	r.GET(prefix+"/health", h.Health)
	r.POST(prefix+"/attendance/process", h.Process)
	r.GET(prefix+"/history", h.ListHistory)
	// More specific routes first
	r.GET(prefix+"/download/*/*", h.Download)
	r.GET(prefix+"/history/*", h.GetHistory)

	r.Handle(http.MethodGet, "/swagger/*", httpSwagger.WrapHandler)
}
