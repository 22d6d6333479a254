package main

import "github.com/ferrolab/trainlog/cmd/trainlog/cli"

func main() {
	cli.Execute()
}
