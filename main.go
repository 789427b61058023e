package main

import "github.com/ValentinKolb/wKV/cmd"

func main() {
	cmd.Execute()
}
