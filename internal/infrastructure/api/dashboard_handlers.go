package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"storefront-customizer-app/internal/application"
	"storefront-customizer-app/internal/domain"
	securitymiddleware "storefront-customizer-app/internal/infrastructure/middleware"

	"github.com/rs/zerolog"
)

type shopRequest struct {
	Shop string `json:"shop"`
}

type settingsRequest struct {
	Shop string `json:"shop"`
	domain.Settings
}

type ordersRequest struct {
	Shop       string `json:"shop"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	SearchTerm string `json:"searchTerm"`
}

type orderItemsRequest struct {
	Shop    string      `json:"shop"`
	OrderID json.Number `json:"orderId"`
}

var (
	errBadBody      = errors.New("invalid request body")
	errShopMissing  = errors.New("shop is required")
	errShopMismatch = errors.New("shop does not match session token")
	errOrderMissing = errors.New("orderId is required")
)

// decodeShopBody decodes a JSON body into v and returns the shop the session
// token was issued for. A shop named in the body must be that same shop.
func decodeShopBody(r *http.Request, v any, bodyShop func() string) (string, error) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return "", errBadBody
	}
	shop := securitymiddleware.ShopFromContext(r.Context())
	if shop == "" {
		return "", errShopMissing
	}
	if s := bodyShop(); s != "" && s != shop {
		return "", errShopMismatch
	}
	return shop, nil
}

func writeRequestError(w http.ResponseWriter, err error) {
	if errors.Is(err, errShopMismatch) {
		writeFailure(w, http.StatusForbidden, err.Error())
		return
	}
	writeFailure(w, http.StatusBadRequest, err.Error())
}

// writeServiceError maps dashboard errors to envelopes.
func writeServiceError(w http.ResponseWriter, logger zerolog.Logger, shop string, err error) {
	if errors.Is(err, application.ErrNoSession) {
		writeFailure(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	logger.Error().Err(err).Str("shop", shop).Msg("Dashboard request failed")
	writeFailure(w, http.StatusInternalServerError, err.Error())
}

// verifyHandler echoes the verified session token claims.
func verifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, map[string]any{
			"shop":    securitymiddleware.ShopFromContext(r.Context()),
			"decoded": securitymiddleware.SessionClaimsFromContext(r.Context()),
		})
	}
}

func settingsListHandler(dashboard *application.DashboardService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shopRequest
		shop, err := decodeShopBody(r, &req, func() string { return req.Shop })
		if err != nil {
			writeRequestError(w, err)
			return
		}
		settings, err := dashboard.GetSettings(r.Context(), shop)
		if err != nil {
			writeServiceError(w, logger, shop, err)
			return
		}
		writeSuccess(w, settings)
	}
}

func settingsAddHandler(dashboard *application.DashboardService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		shop, err := decodeShopBody(r, &req, func() string { return req.Shop })
		if err != nil {
			writeRequestError(w, err)
			return
		}
		saved, err := dashboard.SaveSettings(r.Context(), shop, req.Settings)
		if err != nil {
			writeServiceError(w, logger, shop, err)
			return
		}
		writeSuccess(w, saved)
	}
}

func ordersListHandler(dashboard *application.DashboardService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ordersRequest
		shop, err := decodeShopBody(r, &req, func() string { return req.Shop })
		if err != nil {
			writeRequestError(w, err)
			return
		}
		data, err := dashboard.ListOrders(r.Context(), shop, domain.OrderListQuery{
			Page:       req.Page,
			Limit:      req.Limit,
			SearchTerm: req.SearchTerm,
		})
		if err != nil {
			writeServiceError(w, logger, shop, err)
			return
		}
		writeSuccess(w, data)
	}
}

func orderItemsHandler(dashboard *application.DashboardService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderItemsRequest
		shop, err := decodeShopBody(r, &req, func() string { return req.Shop })
		if err != nil {
			writeRequestError(w, err)
			return
		}
		if req.OrderID == "" {
			writeRequestError(w, errOrderMissing)
			return
		}
		data, err := dashboard.ListOrderItems(r.Context(), shop, req.OrderID.String())
		if err != nil {
			writeServiceError(w, logger, shop, err)
			return
		}
		writeSuccess(w, data)
	}
}

func debugWebhooksHandler(dashboard *application.DashboardService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := securitymiddleware.ShopFromContext(r.Context())
		if q := r.URL.Query().Get("shop"); q != "" && q != shop {
			writeRequestError(w, errShopMismatch)
			return
		}
		report, err := dashboard.WebhookReport(r.Context(), shop)
		if err != nil {
			writeServiceError(w, logger, shop, err)
			return
		}
		writeSuccess(w, report)
	}
}
