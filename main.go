package main

import "github.com/curaious/synergy/cmd"

func main() {
	cmd.Execute()
}
