package main

import "github.com/brobarber/brobot/cmd"

func main() {
	cmd.Execute()
}
