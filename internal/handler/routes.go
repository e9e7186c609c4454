package handler

import "github.com/go-chi/chi/v5"

// Mount registers the dashboard, stream and settings routes.
func Mount(r chi.Router, d *Dashboard, s *Settings, st *Stream) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/overview", d.Overview)
		r.Get("/bridge", d.Bridge)
		r.Get("/gas", d.Gas)
		r.Get("/stream", st.Handle)
	})
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Put("/system-scheme", s.SystemScheme)
		r.Put("/{key}", s.Update)
	})
}
