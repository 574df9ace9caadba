package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/Wundero/shiritori/internal/config"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)
	cfg := &config.Config{}
	cobra.CheckErr(newRootCmd(cfg).Execute())
}
