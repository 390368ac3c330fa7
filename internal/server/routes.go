package server

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gaugehub/gauged/internal/engine"
)

// Weights travel as decimal strings: they can exceed what a JSON number
// carries without precision loss.

func parseWeight(s string) (*big.Int, bool) {
	w, ok := new(big.Int).SetString(s, 10)
	if !ok || w.Sign() < 0 {
		return nil, false
	}
	return w, true
}

// atPeriod resolves the optional ?at= unix timestamp to the period index
// it falls in; absent means the current period. On failure it writes the
// response and reports ok=false.
func (s *Server) atPeriod(w http.ResponseWriter, r *http.Request) (period uint64, hasAt, ok bool) {
	at := r.URL.Query().Get("at")
	if at == "" {
		return 0, false, true
	}
	ts, err := strconv.ParseUint(at, 10, 64)
	if err != nil {
		http.Error(w, `{"error":"at must be a unix timestamp"}`, http.StatusBadRequest)
		return 0, false, false
	}
	cfg, err := s.engine.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return 0, false, false
	}
	return engine.PeriodOf(ts, cfg.PeriodSeconds), true, true
}

func (s *Server) handleAddGauge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender string `json:"sender"`
		Addr   string `json:"addr"`
		Weight string `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	weight, ok := parseWeight(req.Weight)
	if !ok {
		http.Error(w, `{"error":"weight must be a non-negative integer string"}`, http.StatusBadRequest)
		return
	}

	if err := s.engine.AddGauge(r.Context(), req.Sender, req.Addr, weight); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"addr":   req.Addr,
		"weight": weight.String(),
	})
}

func (s *Server) handleChangeWeight(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")

	var req struct {
		Sender string `json:"sender"`
		Weight string `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	weight, ok := parseWeight(req.Weight)
	if !ok {
		http.Error(w, `{"error":"weight must be a non-negative integer string"}`, http.StatusBadRequest)
		return
	}

	if err := s.engine.ChangeGaugeWeight(r.Context(), req.Sender, addr, weight); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"addr":   addr,
		"weight": weight.String(),
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")

	var req struct {
		Voter string `json:"voter"`
		Ratio uint64 `json:"ratio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Voter == "" {
		http.Error(w, `{"error":"voter required"}`, http.StatusBadRequest)
		return
	}

	if err := s.engine.Vote(r.Context(), req.Voter, addr, req.Ratio); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"voter": req.Voter,
		"gauge": addr,
		"ratio": req.Ratio,
	})
}

func (s *Server) handleGaugeWeight(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")

	at, hasAt, ok := s.atPeriod(w, r)
	if !ok {
		return
	}

	var weight *big.Int
	var err error
	if hasAt {
		weight, err = s.engine.GaugeWeightAt(r.Context(), addr, at)
	} else {
		weight, err = s.engine.GaugeWeight(r.Context(), addr)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"addr":   addr,
		"weight": weight.String(),
	})
}

func (s *Server) handleRelativeWeight(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")

	at, hasAt, ok := s.atPeriod(w, r)
	if !ok {
		return
	}

	var rel engine.Dec
	var err error
	if hasAt {
		rel, err = s.engine.GaugeRelativeWeightAt(r.Context(), addr, at)
	} else {
		rel, err = s.engine.GaugeRelativeWeight(r.Context(), addr)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"addr":            addr,
		"relative_weight": rel.String(),
		"scaled":          rel.Scaled(),
	})
}

func (s *Server) handleTotalWeight(w http.ResponseWriter, r *http.Request) {
	at, hasAt, ok := s.atPeriod(w, r)
	if !ok {
		return
	}

	var total *big.Int
	var err error
	if hasAt {
		total, err = s.engine.TotalWeightAt(r.Context(), at)
	} else {
		total, err = s.engine.TotalWeight(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"total_weight": total.String(),
	})
}

func (s *Server) handleListGauges(w http.ResponseWriter, r *http.Request) {
	addrs, err := s.engine.GaugeAddrs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if addrs == nil {
		addrs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gauges": addrs,
		"count":  len(addrs),
	})
}

func (s *Server) handleGaugeCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.GaugeCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": n})
}

func (s *Server) handleGaugeByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"id must be a number"}`, http.StatusBadRequest)
		return
	}
	addr, err := s.engine.GaugeAddr(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":   id,
		"addr": addr,
	})
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Compact(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "compacted"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":          cfg.Owner,
		"reward_token":   cfg.RewardToken,
		"escrow_addr":    cfg.EscrowAddr,
		"period_seconds": cfg.PeriodSeconds,
		"vote_delay":     cfg.VoteDelay,
	})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender      string  `json:"sender"`
		Owner       *string `json:"owner"`
		RewardToken *string `json:"reward_token"`
		EscrowAddr  *string `json:"escrow_addr"`
		VoteDelay   *uint64 `json:"vote_delay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	upd := engine.ConfigUpdate{
		Owner:       req.Owner,
		RewardToken: req.RewardToken,
		EscrowAddr:  req.EscrowAddr,
		VoteDelay:   req.VoteDelay,
	}
	if err := s.engine.UpdateConfig(r.Context(), req.Sender, upd); err != nil {
		writeError(w, err)
		return
	}
	s.handleGetConfig(w, r)
}
