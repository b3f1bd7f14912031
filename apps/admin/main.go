package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/pathways/apps/shared"
	"github.com/trezcool/pathways/core"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(conf, "ADMIN")

	c, err := shared.NewContainer(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up dependencies: %v", err), err)
	}

	// start CLI
	cli := newCommandLine(c, os.Stdout)
	err = cli.run(os.Args)
	c.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
