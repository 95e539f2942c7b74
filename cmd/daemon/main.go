// Command daemon calls the downstream API with a client_credentials token, the way a
// backend job without a signed in user would.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
