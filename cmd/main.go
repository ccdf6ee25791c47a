package main

import "github.com/dyike/FinCortex/internal/cli"

func main() {
	cli.Run()
}
