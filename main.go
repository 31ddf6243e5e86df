package main

import "github.com/abdulmanan69/p2pchat/cmd"

func main() {
	cmd.Execute()
}
