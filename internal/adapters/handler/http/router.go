package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewHandler(sessionHandler *SessionHandler, receiptHandler *ReceiptHandler, jwtSecret []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(VoterAuth(jwtSecret))

		r.Post("/elections/{electionID}/sessions", sessionHandler.StartSession)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Delete("/", sessionHandler.TerminateSession)
			r.Put("/extend", sessionHandler.ExtendSession)
			r.Get("/draft", sessionHandler.GetDraft)
			r.Put("/draft", sessionHandler.UpdateDraft)
			r.Post("/submit", sessionHandler.Submit)
			r.Post("/reconcile", sessionHandler.Reconcile)
			r.Get("/recover", sessionHandler.RecoverDraft)
		})

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", receiptHandler.History)
			r.Post("/verify", receiptHandler.Verify)
		})

		r.Post("/issues", receiptHandler.ReportIssue)
	})

	return r
}
