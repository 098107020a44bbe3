package main

import (
	"fmt"
	"os"

	"github.com/elfrances/grs/config"
	"github.com/elfrances/grs/internal/logger"
	"github.com/elfrances/grs/internal/server"
)

func main() {
	conf, err := config.InitConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "grs: %v\nUse --help for the list of supported options.\n", err)
		os.Exit(1)
	}

	if err := logger.Init(conf.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "grs: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()
	log.Infof("action: startup | result: success | version: %s | %s", config.Version, conf)

	if err := server.NewServer(conf).Run(); err != nil {
		log.Fatalf("action: startup | result: failed | error: %v", err)
	}
}
