package router

import (
	"net/http"

	"github.com/AndrewArto/laundropi-control-sub000/backend/app/controllers"
	"github.com/AndrewArto/laundropi-control-sub000/backend/app/middleware"

	"github.com/go-chi/chi/v5"
)

type Controllers struct {
	Auth      *controllers.AuthController
	Agents    *controllers.AgentController
	Relays    *controllers.RelayController
	Cameras   *controllers.CameraController
	Schedules *controllers.ScheduleController
	Socket    *controllers.SocketController
}

// New builds the hub's HTTP surface. Agents connect over /ws/agent with
// their own handshake auth; everything under /api carries a JWT.
func New(c Controllers, auth *middleware.Auth) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging)

	r.Post("/login", c.Auth.Login)
	r.Get("/ws/agent", c.Socket.HandleAgent)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/agents", c.Agents.List)

		r.Route("/agents/{agentID}", func(r chi.Router) {
			r.Get("/commands", c.Agents.Commands)
			r.Get("/machines", c.Agents.MachineList)
			r.Get("/cameras", c.Cameras.ListInventory)
			r.Post("/cameras", c.Cameras.CreateInventory)
			r.Put("/cameras/{cameraID}", c.Cameras.UpdateInventory)
			r.Delete("/cameras/{cameraID}", c.Cameras.DeleteInventory)
			r.Get("/cameras/{cameraID}/frame", c.Cameras.Frame)
			r.Post("/relays/{relayID}/state", c.Relays.SetState)

			r.Get("/schedules", c.Schedules.ListRules)
			r.Post("/schedules", c.Schedules.CreateRule)
			r.Put("/schedules/{ruleID}", c.Schedules.UpdateRule)
			r.Delete("/schedules/{ruleID}", c.Schedules.DeleteRule)

			r.Get("/groups", c.Schedules.ListGroups)
			r.Post("/groups", c.Schedules.CreateGroup)
			r.Put("/groups/{groupID}", c.Schedules.UpdateGroup)
			r.Delete("/groups/{groupID}", c.Schedules.DeleteGroup)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/agents", c.Agents.Provision)
			r.Delete("/agents/{agentID}", c.Agents.Remove)
		})
	})

	return r
}
