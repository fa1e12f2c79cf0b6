// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dosentrack/dosentrack/internal/auth"
)

// Router assembles the HTTP surface.
type Router struct {
	handler *Handler
}

// NewRouter creates a router over the shared handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Authentication endpoints carry the strictest rate limit; login
	// brute force is the main abuse vector.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.Security.LoginRateLimit, h.cfg.Security.LoginRateWindow))
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	// Data endpoints require a valid token.
	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))
		r.Use(auth.Middleware(h.tokens))

		r.Get("/lecturers", h.ListLecturers)
		r.Get("/lecturers/{id}/location", h.LecturerLocation)
		r.Get("/lecturers/{id}/history", h.LecturerHistory)

		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", h.ListPermissions)
			r.Post("/", h.RequestPermission)
			r.Post("/{id}/approve", h.ApprovePermission)
			r.Post("/{id}/reject", h.RejectPermission)
			r.Post("/{id}/revoke", h.RevokePermission)
		})
	})

	// The socket authenticates itself from the token in the header or
	// the query string; the HTTP middleware stack would reject the
	// browser clients that cannot set headers on a WebSocket dial.
	r.Get("/ws", h.WebSocket)

	return r
}
