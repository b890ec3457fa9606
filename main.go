package main

import "github.com/mt4110/rec-split/cmd"

func main() {
	cmd.Execute()
}
