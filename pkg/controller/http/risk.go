package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmap/pkg/domain/interfaces"
	"github.com/secmon-lab/riskmap/pkg/domain/model"
	"github.com/secmon-lab/riskmap/pkg/domain/types"
	"github.com/secmon-lab/riskmap/pkg/rollup"
	"github.com/secmon-lab/riskmap/pkg/utils/apperr"
	"gopkg.in/yaml.v3"
)

// maxDatasetSize limits the body of a dataset upload
const maxDatasetSize = 32 << 20

type riskHandler struct {
	riskUC interfaces.Risk
}

type locationRiskResponse struct {
	Data    *model.LocationRiskData `json:"data"`
	Subtree []types.LocationID      `json:"subtree,omitempty"`
}

type importResponse struct {
	Locations int `json:"locations"`
	Incidents int `json:"incidents"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *riskHandler) handleLocations(w http.ResponseWriter, r *http.Request) {
	roots, err := h.riskUC.Locations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if roots == nil {
		roots = []*model.Location{}
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"locations": roots})
}

func (h *riskHandler) handleRiskMap(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRollupOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.riskUC.Rollup(r.Context(), opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

func (h *riskHandler) handleLocationRisk(w http.ResponseWriter, r *http.Request) {
	id := types.LocationID(chi.URLParam(r, "locationID"))

	opts, err := parseRollupOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := h.riskUC.LocationRisk(r.Context(), id, opts...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := locationRiskResponse{Data: data}
	if r.URL.Query().Get("include") == "subtree" {
		subtree, err := h.riskUC.Subtree(r.Context(), id)
		if err != nil && !errors.Is(err, model.ErrLocationNotFound) {
			writeError(w, r, err)
			return
		}
		// Orphan locations have risk data but no stored record
		if subtree == nil {
			subtree = []types.LocationID{id}
		}
		resp.Subtree = subtree
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func (h *riskHandler) handleImportDataset(w http.ResponseWriter, r *http.Request) {
	dataset, err := decodeDataset(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.riskUC.ImportDataset(r.Context(), dataset); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, importResponse{
		Locations: len(model.FlattenForest(dataset.Locations)),
		Incidents: len(dataset.Incidents),
	})
}

var errBadRequest = goerr.New("bad request")

func parseRollupOptions(r *http.Request) ([]rollup.Option, error) {
	var opts []rollup.Option
	query := r.URL.Query()

	if v := query.Get("direct_only"); v != "" {
		directOnly, err := strconv.ParseBool(v)
		if err != nil {
			return nil, goerr.Wrap(errBadRequest, "invalid direct_only", goerr.V("value", v))
		}
		opts = append(opts, rollup.WithDirectOnly(directOnly))
	}

	if v := query.Get("max_depth"); v != "" {
		maxDepth, err := strconv.Atoi(v)
		if err != nil || maxDepth < 0 {
			return nil, goerr.Wrap(errBadRequest, "invalid max_depth", goerr.V("value", v))
		}
		opts = append(opts, rollup.WithMaxDepth(maxDepth))
	}

	return opts, nil
}

func decodeDataset(r *http.Request) (*model.Dataset, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDatasetSize+1))
	if err != nil {
		return nil, goerr.Wrap(errBadRequest, "failed to read body", goerr.V("error", err.Error()))
	}
	if len(body) > maxDatasetSize {
		return nil, goerr.Wrap(errBadRequest, "dataset too large", goerr.V("limit", maxDatasetSize))
	}

	var dataset model.Dataset
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.Unmarshal(body, &dataset); err != nil {
			return nil, goerr.Wrap(errBadRequest, "invalid YAML dataset", goerr.V("error", err.Error()))
		}
	default:
		if err := json.Unmarshal(body, &dataset); err != nil {
			return nil, goerr.Wrap(errBadRequest, "invalid JSON dataset", goerr.V("error", err.Error()))
		}
	}

	return &dataset, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrLocationNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCyclicHierarchy), errors.Is(err, model.ErrInvalidDataset):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		apperr.Handle(r.Context(), err)
		msg = http.StatusText(status)
	} else {
		ctxlog.From(r.Context()).Debug("request rejected", "status", status, "error", err)
	}

	writeJSON(w, r, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}
