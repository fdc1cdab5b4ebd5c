// The main package for the series-crawler executable.
package main

import (
	"github.com/macrofeed/series-crawler/cmd"
)

func main() {
	cmd.Execute()
}
