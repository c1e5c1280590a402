package main

import (
	"fmt"
	"os"

	"github.com/metalblueberry/tuner/pkg/audio"
)

func main() {
	devices, err := audio.InputDevices()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %-40s %-12s %d ch %6.0f Hz\n", mark, d.Name, d.HostAPI, d.Channels, d.DefaultSampleRate)
	}
}
