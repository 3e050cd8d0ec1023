package main

import "orgsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
