package main

import "sikmeans/cmd"

func main() {
	cmd.NewCLI().Execute()
}
