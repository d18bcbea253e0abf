package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/clubmarket/internal/domain"
)

func setChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func withActor(r *http.Request, actor *domain.Actor) *http.Request {
	return r.WithContext(domain.WithActor(r.Context(), actor))
}

var (
	manager = &domain.Actor{UserID: "u-1", ClubID: "club-b", Role: domain.RoleManager}
	seller  = &domain.Actor{UserID: "u-2", ClubID: "club-a", Role: domain.RoleManager}
	admin   = &domain.Actor{UserID: "root", Role: domain.RoleAdmin}
	viewer  = &domain.Actor{UserID: "u-3", ClubID: "club-b", Role: domain.RoleViewer}
)
