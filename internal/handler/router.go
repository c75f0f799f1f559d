package handler

import (
	"github.com/Dan9191/bank-portal/internal/config"
	"github.com/Dan9191/bank-portal/internal/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires every route with its middleware
func NewRouter(h *Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Logger(h.log), middleware.Recoverer(h.log))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/key-rate", h.KeyRate).Methods("GET")

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))

	authRouter.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	authRouter.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	authRouter.HandleFunc("/accounts/{id}/freeze", h.SetAccountFrozen).Methods("PUT")
	authRouter.HandleFunc("/accounts/{id}/transactions", h.ListTransactions).Methods("GET")
	authRouter.HandleFunc("/accounts/{id}/transactions", h.ApplyTransaction).Methods("POST")
	authRouter.HandleFunc("/accounts/{id}/reconcile", h.ReconcileAccount).Methods("GET")
	authRouter.HandleFunc("/transactions/{id}", h.EditTransaction).Methods("PATCH")
	authRouter.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")

	authRouter.HandleFunc("/cards", h.IssueCard).Methods("POST")
	authRouter.HandleFunc("/users/{id}/cards", h.ListCards).Methods("GET")
	authRouter.HandleFunc("/cards/{id}/status", h.SetCardStatus).Methods("PUT")
	authRouter.HandleFunc("/cards/{id}/limits", h.SetCardLimits).Methods("PUT")
	authRouter.HandleFunc("/cards/{id}/freeze", h.SetCardFreeze).Methods("PUT")
	authRouter.HandleFunc("/cards/{id}/notifications", h.SetCardNotifications).Methods("PUT")
	authRouter.HandleFunc("/cards/{id}", h.DeleteCard).Methods("DELETE")

	authRouter.HandleFunc("/goals", h.CreateGoal).Methods("POST")
	authRouter.HandleFunc("/users/{id}/goals", h.ListGoals).Methods("GET")
	authRouter.HandleFunc("/goals/{id}/contributions", h.Contribute).Methods("POST")

	authRouter.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	authRouter.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
	authRouter.HandleFunc("/notifications/{id}", h.DeleteNotification).Methods("DELETE")

	return r
}
