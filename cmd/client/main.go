package main

import "github.com/voidfemme/nbt-mapart-helper/cmd/client/cmd"

func main() {
	cmd.Execute()
}
