package main

import "github.com/alexlup06-authgate/memberauth-go/cmd/memberctl/cmd"

func main() {
	cmd.Execute()
}
