package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/middleware"
)

// NewRouter mounts the DevTrack API.
//
// Routes:
//
//	POST /auth/register, /auth/login      public
//	GET  /ws/{clientID}                   live updates, public
//	GET|POST /projects, GET|PUT /projects/{id}
//	GET|POST /tasks,    GET|PUT /tasks/{id}
//	GET|POST /bugs,     GET|PUT /bugs/{id}
//	GET  /analytics/dashboard
//
// Everything but the public routes requires a bearer token.
func NewRouter(
	authHandler *AuthHandler,
	trackerHandler *TrackerHandler,
	hub *Hub,
	parser middleware.TokenParser,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "DevTrack API is running!"})
	})
	r.Get("/ws/{clientID}", hub.ServeWS)

	r.Route("/auth", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(parser))
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", trackerHandler.ListProjects)
			r.Post("/", trackerHandler.CreateProject)
			r.Get("/{id}", trackerHandler.GetProject)
			r.Put("/{id}", trackerHandler.UpdateProject)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", trackerHandler.ListTasks)
			r.Post("/", trackerHandler.CreateTask)
			r.Get("/{id}", trackerHandler.GetTask)
			r.Put("/{id}", trackerHandler.UpdateTask)
		})
		r.Route("/bugs", func(r chi.Router) {
			r.Get("/", trackerHandler.ListBugs)
			r.Post("/", trackerHandler.CreateBug)
			r.Get("/{id}", trackerHandler.GetBug)
			r.Put("/{id}", trackerHandler.UpdateBug)
		})
		r.Get("/analytics/dashboard", trackerHandler.Dashboard)
	})

	return r
}
