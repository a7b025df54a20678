package main

import (
	"fmt"
	"os"

	app "github.com/hhzhhzhhz/mirror-master/pkg/server"
	"github.com/hhzhhzhhz/mirror-master/server"
)

func main() {
	if err := app.Run(&server.MasterServer{}); err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}
