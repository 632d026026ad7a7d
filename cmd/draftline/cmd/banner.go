package cmd

import (
	"fmt"
)

const banner = `
  _____             __ _   _ _
 |  __ \           / _| | | (_)
 | |  | |_ __ __ _| |_| |_| |_ _ __   ___
 | |  | | '__/ _` + "`" + ` |  _| __| | | '_ \ / _ \
 | |__| | | | (_| | | | |_| | | | | |  __/
 |_____/|_|  \__,_|_|  \__|_|_|_| |_|\___|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  LinkedIn Content Generation Service - Version %s\x1b[0m\n\n", Version)
}
