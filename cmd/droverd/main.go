// droverd is the background manager process. The drover CLI launches
// it detached and talks to it through the project state directory, so
// it is not intended for direct interactive use.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"drover/internal/config"
	"drover/internal/daemonrun"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, root, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("droverd: %v", err)
	}

	project, err := config.Load(root)
	if err != nil {
		log.Fatalf("droverd: load project: %v", err)
	}

	if err := daemonrun.Run(ctx, project, opts); err != nil {
		log.Fatalf("droverd: %v", err)
	}
}
