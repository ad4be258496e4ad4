// Clipguard - perceptual fingerprinting and blocklist matching for video clips
package main

func main() {
	Execute()
}
