// Package status serves a read-only JSON view of the running core on
// /status, with per-voice detail on /status/voices/{slot}.
package status

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	picopd "github.com/cbegin/picopd-go"
	"github.com/cbegin/picopd-go/internal/engine"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Source is anything that can report a core status. Status must be safe to
// call from the HTTP goroutines.
type Source interface {
	Status() picopd.Status
}

type voiceInfo struct {
	Slot    int         `json:"slot"`
	Note    uint8       `json:"note"`
	Active  bool        `json:"active"`
	Address engine.Hash `json:"address"`
}

type report struct {
	Gain        float32     `json:"gain"`
	LEDLevel    float32     `json:"led_level"`
	LEDDuty     uint8       `json:"led_duty"`
	Voices      []voiceInfo `json:"voices"`
	MIDIMounted bool        `json:"midi_mounted"`
}

type status struct {
	src    Source
	logger *slog.Logger
}

// ServeStatus registers the status routes on r.
func ServeStatus(r *mux.Router, src Source, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &status{src: src, logger: logger}
	r.Methods("GET").Path("/status").HandlerFunc(s.statusPage)
	r.Methods("GET").Path("/status/voices/{slot:[0-9]+}").HandlerFunc(s.voicePage)
}

// NewHandler returns the full status handler with Apache-style access
// logging to accessLog.
func NewHandler(src Source, logger *slog.Logger, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	ServeStatus(r, src, logger)
	var h http.Handler = r
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}

func (s *status) statusPage(w http.ResponseWriter, r *http.Request) {
	st := s.src.Status()
	rep := report{
		Gain:        st.Gain,
		LEDLevel:    st.LEDLevel,
		LEDDuty:     st.LEDDuty,
		Voices:      make([]voiceInfo, len(st.Voices)),
		MIDIMounted: st.MIDIMounted,
	}
	for i, v := range st.Voices {
		rep.Voices[i] = voiceInfo{Slot: i, Note: v.Note, Active: v.Active, Address: v.Address}
	}
	s.respond(w, rep)
}

func (s *status) voicePage(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	voices := s.src.Status().Voices
	if err != nil || slot >= len(voices) {
		s.respondError(w, http.StatusNotFound, "no such voice")
		return
	}
	v := voices[slot]
	s.respond(w, voiceInfo{Slot: slot, Note: v.Note, Active: v.Active, Address: v.Address})
}

func (s *status) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("status: encode failed", "err", err)
	}
}

func (s *status) respondError(w http.ResponseWriter, code int, msg string) {
	type jsonError struct {
		Error string `json:"error"`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(jsonError{Error: msg}); err != nil {
		s.logger.Warn("status: encode failed", "err", err)
	}
}
