package main

import "github.com/crossroads-network/crossroads/internal/cli"

func main() {
	cli.Execute()
}
