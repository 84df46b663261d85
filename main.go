// main.go
/*
Copyright © 2025 Campus IT <mis@campusit.tw>
*/
package main

import "github.com/campusit/mfpusage/cmd"

func main() {
	cmd.Execute()
}
