package main

import "webchat-cli/cmd"

func main() {
	cmd.Execute()
}
