package main

import "sqlstress/cmd"

func main() {
	cmd.Execute()
}
