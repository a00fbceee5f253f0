// feedsieve filters social feed snapshots according to per-user settings.
package main

import (
	"os"

	"github.com/hupe1980/feedsieve/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
