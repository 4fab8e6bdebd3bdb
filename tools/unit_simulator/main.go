package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reachstacker-monitor/internal/storeclient"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

type config struct {
	storeURL        string
	units           string
	interval        time.Duration
	count           int
	emergencyChance float64
	dangerChance    float64
	seed            int64
}

func main() {
	cfg := parseConfig()
	units := splitCSV(cfg.units)
	if len(units) == 0 {
		log.Fatal("units must not be empty")
	}
	if cfg.interval <= 0 {
		log.Fatal("interval must be > 0")
	}

	client, err := storeclient.NewClient(cfg.storeURL)
	if err != nil {
		log.Fatalf("store client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(cfg.seed))
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	log.Printf("simulating units=%v interval=%s store=%s", units, cfg.interval, cfg.storeURL)
	sent := 0
	for {
		for _, unitID := range units {
			payload := randomPayload(rng, unitID, cfg.emergencyChance, cfg.dangerChance)
			resp, err := client.Post(ctx, payload)
			if err != nil {
				log.Printf("post failed unit=%s err=%v", unitID, err)
				continue
			}
			log.Printf("posted unit=%s status=%s timestamp=%s", unitID, resp.Status, resp.Timestamp)
		}
		sent++
		if cfg.count > 0 && sent >= cfg.count {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func randomPayload(rng *rand.Rand, unitID string, emergencyChance, dangerChance float64) telemetry.Payload {
	temperature := 60 + rng.Float64()*25
	pressure := 90 + rng.Float64()*40
	oil := 50 + rng.Float64()*50
	fuel := 40 + rng.Float64()*60
	if rng.Float64() < dangerChance {
		switch rng.Intn(4) {
		case 0:
			temperature = 91 + rng.Float64()*10
		case 1:
			pressure = 151 + rng.Float64()*20
		case 2:
			oil = rng.Float64() * 29
		default:
			fuel = rng.Float64() * 19
		}
	}
	estop := 0
	if rng.Float64() < emergencyChance {
		estop = 1
	}
	rpm := 800 + rng.Intn(1700)
	return telemetry.NewPayload(unitID, round1(temperature), round1(pressure), round1(oil), round1(fuel), rpm, estop)
}

func round1(value float64) float64 {
	return float64(int(value*10+0.5)) / 10
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.storeURL, "store-url", envOrDefault("STORE_URL", "http://localhost:8090/"), "telemetry store base URL")
	flag.StringVar(&cfg.units, "units", envOrDefault("UNITS", "RS-A,RS-B,RS-C"), "comma separated unit ids")
	flag.DurationVar(&cfg.interval, "interval", envOrDuration("SIM_INTERVAL", 5*time.Second), "delay between rounds")
	flag.IntVar(&cfg.count, "count", envOrInt("SIM_COUNT", 0), "number of rounds, 0 runs until interrupted")
	flag.Float64Var(&cfg.emergencyChance, "emergency-chance", envOrFloat("SIM_EMERGENCY_CHANCE", 0.02), "probability of an emergency stop per reading")
	flag.Float64Var(&cfg.dangerChance, "danger-chance", envOrFloat("SIM_DANGER_CHANCE", 0.1), "probability of a danger-band value per reading")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrFloat(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
