package main

import "github.com/rohmanhakim/crawlkit/internal/cli"

func main() {
	cli.Execute()
}
