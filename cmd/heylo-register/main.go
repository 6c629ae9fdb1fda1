package main

import "github.com/pfrederiksen/heylo-register/internal/cli"

func main() {
	cli.Execute()
}
