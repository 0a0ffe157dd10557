// Command parkingsim is the scripted tooling around the parking backend:
// it loads the sample data fixture and drives randomized IoT observations
// against the same database the server uses.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-availability-backend/config"
	"parking-availability-backend/internal/db"
	"parking-availability-backend/internal/seed"
	"parking-availability-backend/internal/sim"
	"parking-availability-backend/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (defaults to $CONFIG_PATH or ./config/config.yaml)")
		doSeed     = flag.Bool("seed", false, "load sample areas, slots, and sensors, replacing existing data")
		doSimulate = flag.Bool("simulate", false, "emit randomized sensor observations")
		updates    = flag.Int("updates", 50, "number of observations to emit with -simulate")
		interval   = flag.Duration("interval", 5*time.Second, "delay between observations with -simulate")
	)
	flag.Parse()

	if !*doSeed && !*doSimulate {
		log.Fatal("nothing to do: pass -seed and/or -simulate")
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", path, err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	appStore := store.NewGormStore(gormDB, cfg.Pricing.RatePerHalfHour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Interrupt cleanly mid-simulation.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Interrupted, stopping...")
		cancel()
	}()

	if *doSeed {
		if err := seed.LoadSampleData(ctx, appStore); err != nil {
			log.Fatalf("failed to load sample data: %v", err)
		}
	}

	if *doSimulate {
		log.Printf("Starting IoT simulation for %d updates...", *updates)
		svc := sim.NewService(cfg, appStore, nil)
		if err := svc.RunBatch(ctx, *updates, *interval); err != nil {
			log.Fatalf("simulation failed: %v", err)
		}
		log.Println("IoT simulation completed!")
	}
}
