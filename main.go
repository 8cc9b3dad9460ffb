package main

import "github.com/kozaktomas/maneifest/cmd"

func main() {
	cmd.Execute()
}
