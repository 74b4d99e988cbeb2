// README: Benchmark test cases: environment, API surface, reward flow, concurrency, and ledger consistency.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	token string
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	if r.cfg.JWTSecret != "" {
		if tok, err := mintToken(r.cfg.JWTSecret, r.cfg.UserID); err == nil {
			r.token = tok
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

// mintToken signs a short-lived HS256 token the API's verifier accepts.
func mintToken(secret, userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var coreTables = []string{
	"recommendations",
	"trips",
	"trip_status_events",
	"wallets",
	"wallet_transactions",
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Schema applied",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				for _, t := range coreTables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "API: health",
			Focus: "Server reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				resp, err := r.httpc.Get(base + "/healthz")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name:  "API: metrics exposed",
			Focus: "Prometheus endpoint",
			Run: func(ctx context.Context, r *Runner) Result {
				resp, err := r.httpc.Get(base + "/metrics")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				if !strings.Contains(string(body), "offpeak_") {
					return Result{Status: "PENDING", Note: "no offpeak_ metrics yet"}
				}
				return Result{Status: "PASS"}
			},
		},

		{
			Name:  "Auth: missing token -> 401",
			Focus: "Bearer auth enforced",
			Run: func(ctx context.Context, r *Runner) Result {
				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/trips", nil)
				resp, err := r.httpc.Do(req)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusUnauthorized {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: "PASS"}
			},
		},

		r.httpCase("Recommend: missing fields -> 400", base+"/api/trips/recommend", map[string]any{}, []int{400}, nil),
		r.httpCase("Recommend: create (valid)", base+"/api/trips/recommend", map[string]any{
			"origin_address":      "강남역",
			"destination_address": "홍대입구역",
			"horizon_hours":       6,
		}, []int{201}, []int{422, 502, 503}),

		r.httpCaseMethod("OptimalTime: default window", http.MethodGet, base+"/api/trips/optimal-time", nil, []int{200}, []int{404, 503}),
		r.httpCaseMethod("OptimalTime: malformed current_time -> 400", http.MethodGet,
			base+"/api/trips/optimal-time?current_time=not-a-time", nil, []int{400}, nil),

		r.httpCaseMethod("Trips: history", http.MethodGet, base+"/api/trips", nil, []int{200}, nil),
		r.httpCaseMethod("Wallet: overview", http.MethodGet, base+"/api/rewards/wallet", nil, []int{200}, nil),
		r.httpCaseMethod("Wallet: transactions", http.MethodGet, base+"/api/rewards/transactions", nil, []int{200}, nil),
		r.httpCaseMethod("Wallet: summary", http.MethodGet, base+"/api/rewards/summary", nil, []int{200}, nil),

		{
			Name:  "Flow: recommend -> start -> arrive credits both rewards",
			Focus: "End-to-end reward flow",
			Run:   flowCase,
		},
		{
			Name:  "Concurrency: multi start same recommendation",
			Focus: "Only one trip per recommendation",
			Run:   concurrentStart,
		},
		{
			Name:  "Consistency: balances equal ledger sums",
			Focus: "Ledger consistency",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				var violations int
				err := r.db.QueryRow(ctx, `
					SELECT COUNT(*)
					FROM wallets w
					WHERE w.balance <> COALESCE((
						SELECT SUM(CASE WHEN t.direction = 'credit' THEN t.amount ELSE -t.amount END)
						FROM wallet_transactions t
						WHERE t.user_id = w.user_id
					), 0)`).Scan(&violations)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if violations != 0 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("violations=%d", violations)}
				}
				return Result{Status: "PASS"}
			},
		},

		{
			Name:  "Perf: optimal-time throughput",
			Focus: "Cached minute scan",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, base+"/api/trips/optimal-time", nil)
			},
		},
		{
			Name:  "Perf: wallet summary throughput",
			Focus: "Ledger aggregate reads",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, base+"/api/rewards/summary", nil)
			},
		},
	}
}

func (r *Runner) httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return r.httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func (r *Runner) httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			status, _, latency, err := r.do(ctx, method, url, body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			if contains(pendingStatuses, status) {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

// do sends one authenticated request and returns status, decoded body,
// and latency.
func (r *Runner) do(ctx context.Context, method, url string, body any) (int, map[string]any, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded, latency, nil
}

// flowCase walks the whole reward loop: recommend, start (departure
// credit), arrive (completion credit), then verifies the balance moved.
func flowCase(ctx context.Context, r *Runner) Result {
	base := r.cfg.BaseURL

	status, rec, _, err := r.do(ctx, http.MethodPost, base+"/api/trips/recommend", map[string]any{
		"origin_address":      "강남역",
		"destination_address": "홍대입구역",
		"horizon_hours":       6,
	})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: "SKIP", Note: fmt.Sprintf("recommend status=%d (maps configured?)", status)}
	}
	recID, _ := rec["id"].(string)
	if recID == "" {
		return Result{Status: "FAIL", Note: "no recommendation id in response"}
	}

	status, started, _, err := r.do(ctx, http.MethodPost, base+"/api/trips/start/"+recID, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("start status=%d", status)}
	}
	reward, _ := started["departure_reward"].(map[string]any)
	if reward == nil || reward["amount"] == nil {
		return Result{Status: "FAIL", Note: "no departure reward in start response"}
	}
	trip, _ := started["trip"].(map[string]any)
	tripID, _ := trip["id"].(string)
	if tripID == "" {
		return Result{Status: "FAIL", Note: "no trip id in start response"}
	}

	// A second start on the same recommendation must be rejected.
	status, _, _, err = r.do(ctx, http.MethodPost, base+"/api/trips/start/"+recID, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusConflict {
		return Result{Status: "FAIL", Note: fmt.Sprintf("second start status=%d, want 409", status)}
	}

	status, arrived, _, err := r.do(ctx, http.MethodPost, base+"/api/trips/arrive/"+tripID, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("arrive status=%d", status)}
	}
	if arrived["completion_reward"] == nil {
		return Result{Status: "FAIL", Note: "no completion reward in arrive response"}
	}

	status, _, _, err = r.do(ctx, http.MethodPost, base+"/api/trips/arrive/"+tripID, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusConflict {
		return Result{Status: "FAIL", Note: fmt.Sprintf("second arrive status=%d, want 409", status)}
	}

	status, summary, _, err := r.do(ctx, http.MethodGet, base+"/api/rewards/summary", nil)
	if err != nil || status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("summary status=%d", status)}
	}
	balance, _ := summary["current_balance"].(float64)
	if balance <= 0 {
		return Result{Status: "FAIL", Note: "balance did not increase"}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("balance=%d", int64(balance))}
}

// concurrentStart races many starts on one recommendation; the unique
// claim must let at most one succeed.
func concurrentStart(ctx context.Context, r *Runner) Result {
	base := r.cfg.BaseURL

	status, rec, _, err := r.do(ctx, http.MethodPost, base+"/api/trips/recommend", map[string]any{
		"origin_address":      "강남역",
		"destination_address": "홍대입구역",
		"horizon_hours":       6,
	})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: "SKIP", Note: fmt.Sprintf("recommend status=%d (maps configured?)", status)}
	}
	recID, _ := rec["id"].(string)
	if recID == "" {
		return Result{Status: "FAIL", Note: "no recommendation id in response"}
	}

	var mu sync.Mutex
	succ, conflict := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _, err := r.do(ctx, http.MethodPost, base+"/api/trips/start/"+recID, nil)
			if err != nil {
				return
			}
			mu.Lock()
			switch status {
			case http.StatusCreated:
				succ++
			case http.StatusConflict:
				conflict++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if succ > 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("success=%d", succ)}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("success=%d conflict=%d", succ, conflict)}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				status, _, _, err := r.do(ctx, method, url, payload)
				mu.Lock()
				if err != nil || status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
