package main

import "github.com/pfrederiksen/uct-events/internal/cli"

func main() {
	cli.Execute()
}
