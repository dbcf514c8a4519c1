package main

import "github.com/softeno/permission-template/cmd"

func main() {
	cmd.Execute()
}
