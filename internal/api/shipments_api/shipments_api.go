// Package shipments_api exposes the shipment service over JSON HTTP.
package shipments_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/trackfleet/trackfleet/internal/integrations/carrier"
	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/services/refresher"
	"github.com/trackfleet/trackfleet/internal/services/shipments"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

type Service interface {
	Register(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error)
	Get(ctx context.Context, trackingID string) (*models.Shipment, error)
	History(ctx context.Context, trackingID string) ([]models.HistoryEvent, error)
	List(ctx context.Context) ([]*models.Shipment, error)
	Refresh(ctx context.Context, trackingID string, force bool) (*models.Shipment, refresher.ItemLog, error)
	RefreshFleet(ctx context.Context, force bool) (refresher.FleetResult, error)
	ListRuns(ctx context.Context, limit int) ([]*pgshipments.RefreshRun, error)
}

type ShipmentsAPI struct {
	svc Service
}

func New(svc Service) *ShipmentsAPI {
	return &ShipmentsAPI{svc: svc}
}

func (a *ShipmentsAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/shipments", a.createShipments)
		r.Get("/shipments", a.listShipments)
		r.Get("/shipments/{trackingID}", a.getShipment)
		r.Get("/shipments/{trackingID}/history", a.getHistory)
		r.Post("/shipments/{trackingID}/refresh", a.refreshShipment)
		r.Post("/refresh", a.refreshFleet)
		r.Get("/refresh/runs", a.listRuns)
	})
	return r
}

type createItem struct {
	TrackingID         string `json:"trackingId,omitempty"`
	Provider           string `json:"provider"`
	OriginalTrackingID string `json:"originalTrackingId"`
}

type createRequest struct {
	Items []createItem `json:"items"`
}

type shipmentDTO struct {
	TrackingID         string                `json:"trackingId"`
	OriginalTrackingID string                `json:"originalTrackingId"`
	Provider           string                `json:"provider"`
	Status             string                `json:"status"`
	Location           string                `json:"location,omitempty"`
	EstimatedDelivery  *time.Time            `json:"estimatedDelivery,omitempty"`
	Origin             string                `json:"origin,omitempty"`
	Destination        string                `json:"destination,omitempty"`
	History            []models.HistoryEvent `json:"history,omitempty"`
	AdditionalInfo     map[string]any        `json:"additionalInfo,omitempty"`
	LastError          string                `json:"lastError,omitempty"`
	LastFetched        *time.Time            `json:"lastFetched,omitempty"`
	LastUpdated        *time.Time            `json:"lastUpdated,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
}

func (a *ShipmentsAPI) createShipments(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	in := make([]models.ShipmentCreateInput, 0, len(req.Items))
	for _, it := range req.Items {
		in = append(in, models.ShipmentCreateInput{
			TrackingID:         it.TrackingID,
			Provider:           it.Provider,
			OriginalTrackingID: it.OriginalTrackingID,
		})
	}

	created, err := a.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"shipments": toDTOs(created)})
}

func (a *ShipmentsAPI) listShipments(w http.ResponseWriter, r *http.Request) {
	all, err := a.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": toDTOs(all)})
}

func (a *ShipmentsAPI) getShipment(w http.ResponseWriter, r *http.Request) {
	sh, err := a.svc.Get(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(sh))
}

func (a *ShipmentsAPI) getHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.svc.History(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if history == nil {
		history = []models.HistoryEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (a *ShipmentsAPI) refreshShipment(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	sh, itemLog, err := a.svc.Refresh(r.Context(), chi.URLParam(r, "trackingID"), force)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shipment": toDTO(sh),
		"log":      itemLog,
	})
}

func (a *ShipmentsAPI) refreshFleet(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	res, err := a.svc.RefreshFleet(r.Context(), force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *ShipmentsAPI) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := a.svc.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*pgshipments.RefreshRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shipments.ErrNotFound), errors.Is(err, refresher.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, carrier.ErrProviderConfig), errors.Is(err, carrier.ErrRequestSetup):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		// Carrier-side failures (bad gateway semantics) and everything else.
		var apiErr *carrier.APIError
		if errors.As(err, &apiErr) || errors.Is(err, carrier.ErrNetwork) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func toDTO(sh *models.Shipment) shipmentDTO {
	dto := shipmentDTO{
		TrackingID:         sh.TrackingID,
		OriginalTrackingID: sh.OriginalTrackingID,
		Provider:           sh.Provider,
		Status:             sh.Status,
		Location:           sh.Location,
		EstimatedDelivery:  sh.EstimatedDelivery,
		Origin:             sh.Origin,
		Destination:        sh.Destination,
		History:            sh.History,
		AdditionalInfo:     sh.AdditionalInfo,
		LastFetched:        sh.LastFetched,
		LastUpdated:        sh.LastUpdated,
		CreatedAt:          sh.CreatedAt,
	}
	if sh.LastError != nil {
		dto.LastError = *sh.LastError
	}
	return dto
}

func toDTOs(shs []*models.Shipment) []shipmentDTO {
	out := make([]shipmentDTO, 0, len(shs))
	for _, sh := range shs {
		out = append(out, toDTO(sh))
	}
	return out
}
