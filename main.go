package main

import "github.com/marinapotashenkova/SCPlayer/cmd"

func main() {
	cmd.Execute()
}
