// dirindex is the offline companion tool of the DN-to-ID index: it
// loads a DN list into a fresh index, dumps the stored records, and
// verifies the structural invariants of a database image.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
