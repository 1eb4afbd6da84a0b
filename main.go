package main

import "github.com/ngld/pytask/cmd"

func main() {
	cmd.Execute()
}
