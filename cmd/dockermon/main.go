// cmd/dockermon/main.go
package main

import (
	"os"

	"github.com/apex/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithField("error", err).Error("dockermon failed")
		os.Exit(1)
	}
}
