package main

import (
	"os"

	dragoncmder "github.com/bochendong/dragon-continue/cmd/dragon"
)

func main() {
	cmd := dragoncmder.NewDragonCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
