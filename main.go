package main

import "github.com/sqriak/sqriak/cmd"

func main() {
	cmd.Execute()
}
