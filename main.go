package main

import "github.com/nextlevelbuilder/agentchat/cmd"

func main() {
	cmd.Execute()
}
