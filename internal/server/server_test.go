package server

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gaugehub/gauged/internal/engine"
	"github.com/gaugehub/gauged/internal/escrow"
	"github.com/gaugehub/gauged/internal/store"
)

// testServer runs the API over an in-memory store at period 0 with
// one-second periods.
func testServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	esc := &escrow.Static{Locks: map[string]escrow.Lock{
		"alice": {
			UnlockPeriod: 100,
			Slope:        escrow.Fraction{Num: big.NewInt(998244353), Den: big.NewInt(100)},
		},
	}}

	eng := engine.New(db, esc)
	eng.Now = func() time.Time { return time.Unix(0, 0) }
	err = eng.Init(context.Background(), store.ControllerConfig{
		Owner:         "owner",
		RewardToken:   "reward",
		EscrowAddr:    "escrow",
		PeriodSeconds: 1,
		VoteDelay:     2,
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return New(eng, "test"), eng
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp["status"] != "ok" || resp["db"] != true {
		t.Errorf("health = %v", resp)
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v", resp["version"])
	}
}

func TestAddGaugeEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"23333"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	// Non-owner is forbidden.
	w = do(t, srv, "POST", "/api/gauges", `{"sender":"mallory","addr":"g2","weight":"1"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d", w.Code)
	}
	if resp := decode(t, w); resp["code"] != "unauthorized" {
		t.Errorf("code = %v", resp["code"])
	}

	// Duplicate address conflicts.
	w = do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"1"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", w.Code)
	}

	// Weights must be integer strings.
	w = do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g3","weight":"1.5"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("fractional weight status = %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/gauges", "")
	resp := decode(t, w)
	if resp["count"] != float64(1) {
		t.Errorf("gauge list = %v", resp)
	}
}

func TestVoteAndWeightEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"23333"}`)

	w := do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"alice","ratio":10000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("vote status = %d; body: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/gauges/g1/weight", "")
	if resp := decode(t, w); resp["weight"] != "998267686" {
		t.Errorf("weight = %v", resp["weight"])
	}
	w = do(t, srv, "GET", "/api/gauges/g1/weight?at=1", "")
	if resp := decode(t, w); resp["weight"] != "988285242" {
		t.Errorf("weight at 1 = %v", resp["weight"])
	}
	w = do(t, srv, "GET", "/api/total-weight?at=1", "")
	if resp := decode(t, w); resp["total_weight"] != "988285242" {
		t.Errorf("total at 1 = %v", resp["total_weight"])
	}
	w = do(t, srv, "GET", "/api/gauges/g1/relative-weight", "")
	if resp := decode(t, w); resp["relative_weight"] != "1" {
		t.Errorf("relative weight = %v", resp["relative_weight"])
	}

	w = do(t, srv, "GET", "/api/gauges/g1/weight?at=x", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad at status = %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/gauges/nope/weight", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown gauge status = %d", w.Code)
	}
}

func TestWeightAtTimestamp(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	esc := &escrow.Static{Locks: map[string]escrow.Lock{
		"alice": {
			UnlockPeriod: 100,
			Slope:        escrow.Fraction{Num: big.NewInt(998244353), Den: big.NewInt(100)},
		},
		"carol": {
			UnlockPeriod: 100,
			Slope:        escrow.Fraction{Num: big.NewInt(67794109), Den: big.NewInt(8)},
		},
	}}

	const week = 604800
	eng := engine.New(db, esc)
	eng.Now = func() time.Time { return time.Unix(0, 0) }
	err = eng.Init(context.Background(), store.ControllerConfig{
		Owner:         "owner",
		RewardToken:   "reward",
		EscrowAddr:    "escrow",
		PeriodSeconds: week,
		VoteDelay:     2,
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	srv := New(eng, "test")

	do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"23333"}`)
	do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"alice","ratio":4357}`)
	do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"carol","ratio":5644}`)

	// ?at= is a unix timestamp, not a period index: any second inside the
	// first week reads the undecayed weight, and one week later reads one
	// period of decay.
	w := do(t, srv, "GET", "/api/gauges/g1/weight", "")
	if resp := decode(t, w); resp["weight"] != "913245837" {
		t.Errorf("weight now = %v", resp["weight"])
	}
	w = do(t, srv, "GET", "/api/gauges/g1/weight?at=604799", "")
	if resp := decode(t, w); resp["weight"] != "913245837" {
		t.Errorf("weight at 604799 = %v", resp["weight"])
	}
	w = do(t, srv, "GET", "/api/gauges/g1/weight?at=604800", "")
	if resp := decode(t, w); resp["weight"] != "904113612" {
		t.Errorf("weight one week on = %v", resp["weight"])
	}
	w = do(t, srv, "GET", "/api/total-weight?at=604800", "")
	if resp := decode(t, w); resp["total_weight"] != "904113612" {
		t.Errorf("total one week on = %v", resp["total_weight"])
	}
}

func TestVoteErrorMapping(t *testing.T) {
	srv, _ := testServer(t)

	do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"0"}`)

	w := do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"alice","ratio":10001}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad ratio status = %d", w.Code)
	}
	if resp := decode(t, w); resp["code"] != "invalid_voting_ratio" {
		t.Errorf("code = %v", resp["code"])
	}

	// Unknown voters read as expired locks.
	w = do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"mallory","ratio":100}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expired lock status = %d", w.Code)
	}
	if resp := decode(t, w); resp["code"] != "lock_expires_too_soon" {
		t.Errorf("code = %v", resp["code"])
	}

	// Relative weight of an empty controller has no defined shares.
	w = do(t, srv, "GET", "/api/gauges/g1/relative-weight", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero total status = %d", w.Code)
	}
	if resp := decode(t, w); resp["code"] != "total_weight_is_zero" {
		t.Errorf("code = %v", resp["code"])
	}

	w = do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"","ratio":1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty voter status = %d", w.Code)
	}
}

func TestGaugeLookupEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"1"}`)
	do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g2","weight":"2"}`)

	w := do(t, srv, "GET", "/api/gauges/count", "")
	if resp := decode(t, w); resp["count"] != float64(2) {
		t.Errorf("count = %v", resp["count"])
	}

	w = do(t, srv, "GET", "/api/gauges/id/1", "")
	if resp := decode(t, w); resp["addr"] != "g2" {
		t.Errorf("gauge 1 = %v", resp["addr"])
	}
	w = do(t, srv, "GET", "/api/gauges/id/9", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/gauges/id/x", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestConfigEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, "GET", "/api/config", "")
	resp := decode(t, w)
	if resp["owner"] != "owner" || resp["period_seconds"] != float64(1) {
		t.Errorf("config = %v", resp)
	}

	w = do(t, srv, "PATCH", "/api/config", `{"sender":"mallory","owner":"mallory"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("non-owner patch status = %d", w.Code)
	}

	w = do(t, srv, "PATCH", "/api/config", `{"sender":"owner","owner":"owner2","vote_delay":4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d; body: %s", w.Code, w.Body.String())
	}
	resp = decode(t, w)
	if resp["owner"] != "owner2" || resp["vote_delay"] != float64(4) {
		t.Errorf("config after patch = %v", resp)
	}
}

func TestCompactEndpoint(t *testing.T) {
	srv, eng := testServer(t)

	do(t, srv, "POST", "/api/gauges", `{"sender":"owner","addr":"g1","weight":"23333"}`)
	do(t, srv, "POST", "/api/gauges/g1/votes", `{"voter":"alice","ratio":10000}`)

	eng.Now = func() time.Time { return time.Unix(40, 0) }
	w := do(t, srv, "POST", "/api/compact", "")
	if w.Code != http.StatusOK {
		t.Fatalf("compact status = %d; body: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/gauges/g1/weight?at=40", "")
	if resp := decode(t, w); resp["weight"] != "598969945" {
		t.Errorf("weight at 40 = %v", resp["weight"])
	}
}
