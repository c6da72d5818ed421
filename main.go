package main

import "github.com/emaland/cmp/cmd"

func main() {
	cmd.Execute()
}
