package main

import "prowfetch/cmd/cli"

func main() {
	cli.Execute()
}
