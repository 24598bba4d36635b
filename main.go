package main

import "github.com/naka-gawa/branch-usage-checker/cmd"

func main() {
	cmd.Execute()
}
