package main

import "github.com/maxvaer/gmapscan/cmd"

func main() {
	cmd.Execute()
}
