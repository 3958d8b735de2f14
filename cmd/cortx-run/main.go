package main

import (
	"os"

	"github.com/cortx-dev/cortx-run/cmd/cortx-run/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
