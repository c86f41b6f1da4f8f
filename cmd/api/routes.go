package main

import (
	"net/http"
	"time"

	"github.com/barterly/backend/internal/auth"
	"github.com/barterly/backend/internal/handlers"
	"github.com/barterly/backend/internal/middleware"
	"github.com/barterly/backend/internal/ratelimit"
)

const (
	mutationLimit  = 20
	mutationWindow = time.Minute
	authLimit      = 10
	authWindow     = time.Minute
)

// RegisterRoutes adds the /api/v1/ endpoints to the given mux.
// Middleware chain on mutating routes: BearerAuth -> RateLimit -> handler, so
// the limiter keys on the authenticated member. Auth endpoints are limited by
// client IP before any credential check.
func RegisterRoutes(
	mux *http.ServeMux,
	authHandler *auth.Handler,
	authSvc auth.Service,
	members middleware.MemberLookup,
	limiter *ratelimit.Limiter,
	memberHandler *handlers.MemberHandler,
	escrowHandler *handlers.EscrowHandler,
	cashoutHandler *handlers.CashoutHandler,
	adminHandler *handlers.AdminHandler,
) {
	bearer := middleware.BearerAuth(authSvc, members)
	rl := middleware.RateLimit(limiter, mutationLimit, mutationWindow)
	authRL := middleware.RateLimit(limiter, authLimit, authWindow)

	authed := func(h http.HandlerFunc) http.Handler { return bearer(h) }
	limited := func(h http.HandlerFunc) http.Handler { return bearer(rl(h)) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return bearer(middleware.RequireAdmin(rl(h))) }

	// Auth
	mux.Handle("POST /api/v1/auth/register", authRL(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", authRL(http.HandlerFunc(authHandler.Login)))

	// Members
	mux.Handle("GET /api/v1/members/me", authed(memberHandler.Me))
	mux.Handle("GET /api/v1/members/me/transactions", authed(memberHandler.MyTransactions))

	// Escrows
	mux.Handle("POST /api/v1/escrows", limited(escrowHandler.CreateEscrow))
	mux.Handle("GET /api/v1/escrows", authed(escrowHandler.ListEscrows))
	mux.Handle("GET /api/v1/escrows/{id}", authed(escrowHandler.GetEscrow))
	mux.Handle("POST /api/v1/escrows/{id}/deliver", limited(escrowHandler.MarkDelivered))
	mux.Handle("POST /api/v1/escrows/{id}/confirm", limited(escrowHandler.ConfirmReceipt))
	mux.Handle("POST /api/v1/escrows/{id}/dispute", limited(escrowHandler.FileDispute))

	// Cashouts
	mux.Handle("POST /api/v1/cashouts", limited(cashoutHandler.CreateCashout))
	mux.Handle("GET /api/v1/cashouts", authed(cashoutHandler.ListCashouts))
	mux.Handle("GET /api/v1/cashouts/{id}", authed(cashoutHandler.GetCashout))

	// Admin
	mux.Handle("POST /api/v1/admin/adjustments", adminOnly(adminHandler.CreateAdjustment))
	mux.Handle("POST /api/v1/admin/refunds", adminOnly(adminHandler.CreateRefund))
	mux.Handle("POST /api/v1/admin/escrows/{id}/dispute/cancel", adminOnly(adminHandler.CancelDispute))
	mux.Handle("POST /api/v1/admin/escrows/{id}/dispute/resolve", adminOnly(adminHandler.ResolveDispute))
	mux.Handle("POST /api/v1/admin/cashouts/{id}/approve", adminOnly(cashoutHandler.ApproveCashout))
	mux.Handle("POST /api/v1/admin/cashouts/{id}/reject", adminOnly(cashoutHandler.RejectCashout))
}
