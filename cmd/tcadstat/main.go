package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/maax3v3/tcadstat/internal/cli"
	"github.com/maax3v3/tcadstat/internal/pipeline"
)

func main() {
	cfg, err := cli.ParseCalc(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cli.SetupLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := pipeline.Run(cfg, os.Stdout); err != nil {
		log.WithError(err).WithField("kind", pipeline.Kind(err)).Error("Calculation failed")
		os.Exit(1)
	}
}
