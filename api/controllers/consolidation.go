package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ordena-app/ordena-backend/api/responses"
	consolidationsvc "github.com/ordena-app/ordena-backend/internal/consolidation"
	pkgerrors "github.com/ordena-app/ordena-backend/pkg/errors"
	"github.com/ordena-app/ordena-backend/pkg/logger"
)

// RunConsolidation sweeps validated orders into per-provider consolidated orders.
func RunConsolidation(svc consolidationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consolidation service unavailable"))
			return
		}

		actor, err := consolidationActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Run(r.Context(), consolidationsvc.RunInput{
			Actor:   actor,
			Trigger: "api",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetConsolidatedOrder returns one consolidated order with its lines.
func GetConsolidatedOrder(svc consolidationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consolidation service unavailable"))
			return
		}

		actor, err := consolidationActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		consolidatedID, err := pathUUID(r, "consolidatedOrderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), consolidatedID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// ListConsolidatedOrders returns a consolidated order page scoped to the caller.
func ListConsolidatedOrders(svc consolidationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consolidation service unavailable"))
			return
		}

		actor, err := consolidationActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := consolidationsvc.ListFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("provider_id")); raw != "" {
			providerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider id"))
				return
			}
			filters.ProviderID = &providerID
		}

		page, err := svc.List(r.Context(), consolidationsvc.ListInput{
			Params:  params,
			Filters: filters,
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

func consolidationActor(r *http.Request) (consolidationsvc.Actor, error) {
	userID, role, err := requestActor(r)
	if err != nil {
		return consolidationsvc.Actor{}, err
	}
	return consolidationsvc.Actor{UserID: userID, Role: role}, nil
}
