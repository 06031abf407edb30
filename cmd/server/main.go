package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/exp/slog"

	"github.com/voidfemme/nbt-mapart-helper/internal/app/client"
	"github.com/voidfemme/nbt-mapart-helper/internal/config"
	"github.com/voidfemme/nbt-mapart-helper/internal/utils/logger"
)

func main() {
	conf := config.MustLoad()
	log := logger.New(conf.Env)

	// The host never pushes to anyone, so conflicts cannot reach it;
	// a skip policy keeps the resolver inert.
	session := client.NewLANSession(conf, client.NewPolicyResolver(client.ResolutionSkip), log)

	if err := session.StartHosting(); err != nil {
		log.Error("failed to start hosting", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Hosting mapart session as %s on port %d (Ctrl-C to stop)\n",
		conf.Username, conf.LAN.SyncPort)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	session.Stop()
}
