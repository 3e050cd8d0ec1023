package main

import "orgsync/cmd/server/cmd"

func main() {
	cmd.Execute()
}
