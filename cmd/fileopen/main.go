// Command fileopen runs the pending-open host and its client commands.
package main

import (
	"context"
	"os"

	"github.com/roach88/fileopen/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
