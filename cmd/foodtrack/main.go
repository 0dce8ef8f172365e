// Command foodtrack is the admin CLI. It opens the same store the server
// uses, so stop the server first when running on a bolt file (bbolt holds an
// exclusive lock).
package main

import (
	"fmt"
	"os"
)

func main() {
	c := &cli{}
	err := newRootCmd(c).Execute()
	if cerr := c.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
