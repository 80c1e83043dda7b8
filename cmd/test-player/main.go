// Command test-player plays a stream into an existing native window and
// reports player events and render statistics.
//
//	test-player --url rtsp://192.168.1.100/stream --window 0x4a00007
//	test-player --url testsrc://ball --window $(xdotool getactivewindow) --metrics :9110
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
