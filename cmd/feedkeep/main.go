// Command feedkeep keeps an offline cache of a fediverse timeline and its
// notifications.
package main

import (
	"context"
	"os"

	"github.com/roach88/feedkeep/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
