package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const defaultMaxSignals = 12

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"instruments": s.engine.Instruments(),
	})
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Instruments())
}

func (s *Server) handleFactors(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	scores, err := s.engine.Factors(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	probs, err := s.engine.Scenarios(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, probs)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	levels, err := s.engine.Levels(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	state, err := s.engine.FlowState(symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	evts, err := s.engine.RecentEvents(symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, evts)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	txs, err := s.engine.Transactions(symbol)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	maxVisible := defaultMaxSignals
	if raw := r.URL.Query().Get("max"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxVisible = n
		}
	}
	writeJSON(w, http.StatusOK, s.engine.ActiveSignals(maxVisible))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
