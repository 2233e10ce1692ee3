package main

import cmd "github.com/kerbaras/mangafeed/cmd/mangas"

func main() {
	cmd.Execute()
}
