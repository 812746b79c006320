package main

import "github.com/nhirsama/infra-console/cli"

func main() {
	cli.Run()
}
