// Package api exposes the scan controller over HTTP for headless use.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/soocke/qrscan-go/domain/frame"
	"github.com/soocke/qrscan-go/domain/scan"
)

// Controller is the part of *scan.Controller the API drives.
type Controller interface {
	StartStream(ctx context.Context) error
	StopStream()
	State() scan.State
	LastResult() (scan.Result, bool)
	Stats() scan.Stats
	Snapshot() *image.RGBA
}

// StartTimeout bounds how long POST /start waits for camera acquisition.
const StartTimeout = 15 * time.Second

type handlers struct {
	ctl    Controller
	logger *slog.Logger
}

func NewRouter(ctl Controller, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{ctl: ctl, logger: logger}
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/state", h.state).Methods("GET")
	r.HandleFunc("/result", h.result).Methods("GET")
	r.HandleFunc("/stats", h.stats).Methods("GET")
	r.HandleFunc("/snapshot.png", h.snapshot).Methods("GET")
	r.HandleFunc("/start", h.start).Methods("POST")
	r.HandleFunc("/stop", h.stop).Methods("POST")
	return r
}

type stateResponse struct {
	State string `json:"state"`
}

type resultResponse struct {
	Text      string    `json:"text"`
	Format    string    `json:"format"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Repeat    bool      `json:"repeat"`
}

type statsResponse struct {
	SessionID    string `json:"session_id,omitempty"`
	State        string `json:"state"`
	BufferWidth  int    `json:"buffer_width"`
	BufferHeight int    `json:"buffer_height"`
	Ticks        uint64 `json:"ticks"`
	Found        uint64 `json:"found"`
	NotFound     uint64 `json:"not_found"`
	Errors       uint64 `json:"errors"`
	Skipped      uint64 `json:"skipped"`
	Abandoned    uint64 `json:"abandoned"`
	AvgDecodeMs  int64  `json:"avg_decode_ms"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: h.ctl.State().String()})
}

func (h *handlers) result(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ctl.LastResult()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no result yet"})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		Text: res.Text, Format: res.Format, SessionID: res.SessionID, At: res.At, Repeat: res.Repeat,
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	st := h.ctl.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		SessionID:    st.SessionID,
		State:        st.State.String(),
		BufferWidth:  st.BufferSize.X,
		BufferHeight: st.BufferSize.Y,
		Ticks:        st.Ticks,
		Found:        st.Found,
		NotFound:     st.NotFound,
		Errors:       st.Errors,
		Skipped:      st.Skipped,
		Abandoned:    st.Abandoned,
		AvgDecodeMs:  st.AvgDecode.Milliseconds(),
	})
}

func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	img := h.ctl.Snapshot()
	if img == nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "not scanning"})
		return
	}
	defer frame.Recycle(img)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		h.logger.Warn("api.snapshot_encode", "error", err)
	}
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), StartTimeout)
	defer cancel()
	err := h.ctl.StartStream(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, stateResponse{State: h.ctl.State().String()})
	case errors.Is(err, scan.ErrSessionActive), errors.Is(err, scan.ErrClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		resp := errorResponse{Error: err.Error()}
		status := http.StatusServiceUnavailable
		var ae *scan.AcquisitionError
		if errors.As(err, &ae) {
			resp.Reason = string(ae.Reason)
			if ae.Reason == scan.ReasonDenied {
				status = http.StatusForbidden
			}
		}
		writeJSON(w, status, resp)
	}
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.ctl.StopStream()
	writeJSON(w, http.StatusOK, stateResponse{State: h.ctl.State().String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
