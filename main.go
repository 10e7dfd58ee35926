/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "transbot/cmd"

func main() {
	cmd.Execute()
}
