package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	players     int
	workload    string
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Applied
	success200    uint64 // Idempotent replays
	reject422     uint64 // Insufficient funds
	fail409       uint64 // Concurrent duplicate in progress
	failOther     uint64
)

type session struct {
	playerID string
	token    string
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.IntVar(&players, "players", 100, "Number of players to register")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot | retry")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Players: %d | Duration: %s",
		workload, concurrency, players, duration)

	sessions := setup()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, sessions)
	}

	wg.Wait()
	printResults(time.Since(start))
}

// setup registers and logs in the benchmark players, giving each an opening
// deposit so withdrawals have something to drain.
func setup() []session {
	client := &http.Client{Timeout: 10 * time.Second}
	run := time.Now().UnixNano()
	sessions := make([]session, 0, players)

	for i := 0; i < players; i++ {
		login := fmt.Sprintf("bench-%d-%d", run, i)
		body, _ := json.Marshal(map[string]string{
			"first_name": "Bench",
			"last_name":  fmt.Sprintf("Player%d", i),
			"email":      login + "@bench.local",
			"login":      login,
			"password":   "bench-secret",
		})
		resp, err := client.Post(targetURL+"/api/v1/players", "application/json", bytes.NewBuffer(body))
		if err != nil {
			log.Fatalf("Registration failed: %v", err)
		}
		resp.Body.Close()

		body, _ = json.Marshal(map[string]string{"login": login, "password": "bench-secret"})
		resp, err = client.Post(targetURL+"/api/v1/sessions", "application/json", bytes.NewBuffer(body))
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		var out struct {
			Token    string `json:"token"`
			PlayerID string `json:"player_id"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()

		s := session{playerID: out.PlayerID, token: out.Token}
		doOperation(client, s, "deposits", "1000.00", fmt.Sprintf("seed-%d-%d", run, i))
		sessions = append(sessions, s)
	}

	log.Printf("Registered %d players.", len(sessions))
	return sessions
}

func worker(wg *sync.WaitGroup, start time.Time, sessions []session) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		s := pickSession(sessions)

		kind := "deposits"
		if rand.Float32() < 0.5 {
			kind = "withdrawals"
		}

		key := fmt.Sprintf("bench-%s-%d", s.playerID[:8], time.Now().UnixNano())
		if workload == "retry" && rand.Float32() < 0.3 {
			// Deliberate key reuse: these submissions must replay, never
			// double-apply.
			key = fmt.Sprintf("bench-%s-replay", s.playerID[:8])
		}

		status := doOperation(client, s, kind, "10.00", key)

		atomic.AddUint64(&totalRequests, 1)
		switch status {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 200:
			atomic.AddUint64(&success200, 1)
		case 422:
			atomic.AddUint64(&reject422, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

func doOperation(client *http.Client, s session, kind, amount, key string) int {
	payload := map[string]string{"amount": amount}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/api/v1/players/%s/%s", targetURL, s.playerID, kind)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()
	return resp.StatusCode
}

func pickSession(sessions []session) session {
	if workload == "hotspot" && rand.Float32() < 0.90 {
		// Hotspot: 90% of traffic hammers the first two players
		return sessions[rand.Intn(2)]
	}
	return sessions[rand.Intn(len(sessions))]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	r422 := atomic.LoadUint64(&reject422)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()

	results := map[string]interface{}{
		"workload":           workload,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     tps,
		"success_applied":    s201,
		"success_replay":     s200,
		"insufficient_funds": r422,
		"conflicts":          f409,
		"errors":             fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
