package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/cli"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
