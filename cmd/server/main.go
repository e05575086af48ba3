package main

import (
	"net/http"

	"github.com/gorilla/websocket"

	"snake-lobby-server/internal/config"
	"snake-lobby-server/internal/lobby"
	"snake-lobby-server/internal/logging"
	"snake-lobby-server/internal/registry"
	"snake-lobby-server/internal/usernames"
	"snake-lobby-server/internal/wsconn"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// lobby membership, not origin, is the trust boundary here.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogLevel)

	lobby.TickInterval = cfg.TickInterval
	lobby.RefillFoodThreshold = cfg.RefillFoodThreshold

	reg := registry.New()
	uns := usernames.New()

	deps := wsconn.Deps{
		Registry:  reg,
		Usernames: uns,
		Log:       log,
		Config:    cfg,
	}

	mux := http.NewServeMux()

	mux.HandleFunc(cfg.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc(cfg.WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Error("ws upgrade failed")
			return
		}
		log.Info("client connected")
		wsconn.Handle(ws, deps)
	})

	log.WithFields(map[string]interface{}{
		"listen_addr":    cfg.ListenAddr,
		"websocket_path": cfg.WebSocketPath,
	}).Info("server listening")

	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
