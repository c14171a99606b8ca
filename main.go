package main

import "github.com/snarehq/snare/internal/cmd"

func main() {
	cmd.Execute()
}
