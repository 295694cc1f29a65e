package main

import (
	"context"
	"log"
	"net/http"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jonboulle/clockwork"

	"github.com/pkalnins/arena/internal/config"
	"github.com/pkalnins/arena/internal/db"
	"github.com/pkalnins/arena/internal/event"
	"github.com/pkalnins/arena/internal/realtime"
	"github.com/pkalnins/arena/internal/scheduler"
	"github.com/pkalnins/arena/internal/service"
	"github.com/pkalnins/arena/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	bus := event.NewBus()
	clock := clockwork.NewRealClock()

	sched, err := scheduler.New(clock)
	if err != nil {
		log.Fatal("Failed to create scheduler:", err)
	}
	defer sched.Shutdown()

	battleStore := store.NewBattleStore(database)
	userStore := store.NewUserStore(database)

	battleService := service.NewBattleService(database, battleStore, bus, sched, clock)
	participationService := service.NewParticipationService(battleStore, bus, clock)
	userService := service.NewUserService(database, userStore)

	hub := realtime.NewHub()
	events, _ := bus.Subscribe(256)
	go hub.Run(events)

	// Timers live in memory only; rebuild them from the store before
	// accepting traffic so no scheduled battle is missed.
	if err := sched.Restore(context.Background(), battleStore, battleService.AutoStart); err != nil {
		log.Fatal("Failed to restore scheduled battles:", err)
	}

	router := newRouter(sessionManager, userStore, battleService, participationService, userService, hub)

	log.Println("Server starting on", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatal(err)
	}
}
