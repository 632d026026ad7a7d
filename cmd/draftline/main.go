package main

import "github.com/draftline/draftline/cmd/draftline/cmd"

func main() {
	cmd.Execute()
}
