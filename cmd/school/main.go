package main

import "github.com/langschool/backoffice/cmd/school/commands"

func main() {
	commands.Execute()
}
