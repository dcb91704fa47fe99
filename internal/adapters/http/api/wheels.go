package api

import (
	"net/http"
	"strconv"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// WheelsHandler builds wheels synchronously.
type WheelsHandler struct {
	deps Dependencies
}

// NewWheelsHandler creates a new wheels handler.
func NewWheelsHandler(deps Dependencies) *WheelsHandler {
	return &WheelsHandler{deps: deps}
}

// HandleBuild handles POST /wheels.
func (h *WheelsHandler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	const op = "api.build_wheel"
	var req model.BuildRequest
	if err := decodeBody(w, r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	wheel, err := h.deps.BuildWheel(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wheel)
}

// BoundsHandler reports lower bounds and problem sizes.
type BoundsHandler struct {
	deps Dependencies
}

// NewBoundsHandler creates a new bounds handler.
func NewBoundsHandler(deps Dependencies) *BoundsHandler {
	return &BoundsHandler{deps: deps}
}

// HandleBounds handles GET /bounds?n=&k=&m=.
func (h *BoundsHandler) HandleBounds(w http.ResponseWriter, r *http.Request) {
	const op = "api.bounds"
	q := r.URL.Query()
	var nkm [3]int
	for i, name := range []string{"n", "k", "m"} {
		v, err := strconv.Atoi(q.Get(name))
		if err != nil {
			writeError(w, WrapKind(op, ErrBadRequest, model.Errorf(op, model.ErrInvalidParameters, "query parameter %s must be an integer", name)))
			return
		}
		nkm[i] = v
	}
	st, err := h.deps.ComputeStats(r.Context(), nkm[0], nkm[1], nkm[2])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
