package statusd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/fuzzconfig"
	"github.com/raresmith/branchfuzz/internal/fuzzone"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
	"github.com/raresmith/branchfuzz/internal/rng"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealthReportsUptimeAndModes(t *testing.T) {
	cfg := fuzzconfig.Default()
	cfg.ShadowMode = true
	r := NewRouter(Sources{Cfg: cfg, StartedAt: time.Now().Add(-time.Minute)})

	rec := get(t, r, "/status/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["shadow"] != true {
		t.Fatalf("expected shadow=true, got %v", body["shadow"])
	}
}

func TestHandleStatsWithoutAccessorReturnsUnavailable(t *testing.T) {
	r := NewRouter(Sources{})
	rec := get(t, r, "/status/stats")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleStatsReportsCounters(t *testing.T) {
	r := NewRouter(Sources{
		Stats:    func() fuzzone.Stats { return fuzzone.Stats{Executions: 10, StageFinds: 2, StageCycles: 4} },
		QueueLen: func() int { return 7 },
	})
	rec := get(t, r, "/status/stats")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["executions"].(float64) != 10 || body["queueLen"].(float64) != 7 {
		t.Fatalf("unexpected stats body: %v", body)
	}
}

func TestHandleBanditReportsArmCounts(t *testing.T) {
	r0 := rng.New(1)
	grid := bandit.NewGrid(
		func() bandit.Strategy {
			s, err := bandit.New(bandit.KindUniform, bandit.NumHavocOps, bandit.DefaultParams(), r0)
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		func() bandit.Strategy {
			s, err := bandit.New(bandit.KindUniform, bandit.NumBatchArms, bandit.DefaultParams(), r0)
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	)
	r := NewRouter(Sources{Grid: grid})
	rec := get(t, r, "/status/bandit")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Buckets []map[string]any `json:"buckets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Buckets) != bandit.NumBatchBuckets {
		t.Fatalf("got %d buckets, want %d", len(body.Buckets), bandit.NumBatchBuckets)
	}
}

func TestHandleRareBranchWithoutSelectorReturnsUnavailable(t *testing.T) {
	r := NewRouter(Sources{})
	rec := get(t, r, "/status/rarebranch")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandleRareBranchReportsSelectorState(t *testing.T) {
	sel := rarebranch.New(rarebranch.DefaultConfig(), rarebranch.NewHitBits(64))
	r := NewRouter(Sources{Selector: sel})
	rec := get(t, r, "/status/rarebranch")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleConfigEchoesConfig(t *testing.T) {
	cfg := fuzzconfig.Default()
	cfg.Seed = 99
	r := NewRouter(Sources{Cfg: cfg})
	rec := get(t, r, "/status/config")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["seed"].(float64) != 99 {
		t.Fatalf("expected seed 99 in config echo, got %v", body["seed"])
	}
}
