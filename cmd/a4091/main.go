package main

import "github.com/LIV2/a4091-software/cmd/a4091/cmd"

func main() {
	cmd.Execute()
}
