// cmd/pobudka/main.go runs a room on this device, backed by a SQLite file.
// Each stdin line is one action envelope, submitted for the active player:
//
//	{"type":"START_NEW_ROUND"}
//	{"type":"PEEK_CARD","payload":{"cardIndex":0}}
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jason-s-yu/pobudka/internal/config"
	"github.com/jason-s-yu/pobudka/internal/database/sqlite"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/jason-s-yu/pobudka/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database file")
	roomID := flag.String("room", "local", "room to create or resume")
	mode := flag.String("mode", string(models.ModeHotseat), "hotseat or single_player")
	players := flag.String("players", "Alice,Bob", "comma separated player names, in seat order")
	flag.Parse()

	logger := cfg.Logger()
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		logger.Fatalf("open %s: %v", *dbPath, err)
	}
	defer store.Close()

	svc := room.NewService(store, store,
		room.WithEngine(game.NewEngine(nil)),
		room.WithRoster(store),
		room.WithRecorder(store),
		room.WithLogger(logger.WithField("component", "room")),
	)
	r := &runner{svc: svc, seats: store, roomID: *roomID, mode: models.GameMode(*mode)}
	if err := r.setup(ctx, strings.Split(*players, ",")); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	pterm.DefaultHeader.WithFullWidth().Println(fmt.Sprintf("Pobudka - room %s (%s)", r.roomID, r.mode))
	if err := r.play(ctx, os.Stdin); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
