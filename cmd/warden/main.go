// Warden keeps confined players inside a confinement area and gives them
// their possessions back on release.
//
// Usage:
//
//	# Start with the default configuration file (warden.yaml)
//	warden run
//
//	# Start with a custom configuration file
//	warden run --config /etc/warden/warden.yaml
//
//	# Check a configuration file
//	warden validate --config warden.yaml
//
//	# Inspect persisted confinement records
//	warden records list --output json
//	warden records show 3f1c...
//
//	# Show version information
//	warden version
package main

import "os"

func main() {
	os.Exit(Execute())
}
