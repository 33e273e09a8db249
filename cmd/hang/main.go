package main

import (
	"github.com/hangapp/hang/internal/cli"
)

// version will be set by the release pipeline
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
