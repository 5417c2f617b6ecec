package main

import "github.com/Nao-Mk2/aws-logs-auditor/cmd"

func main() {
	cmd.Execute()
}
