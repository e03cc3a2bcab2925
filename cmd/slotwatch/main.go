// slotwatch supervises browser worker processes, launching them when an
// appointment slot opens.
package main

import (
	"os"

	"github.com/xucongyong/slotwatch/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
