package main

import (
	"github.com/openshift-eng/gh-pulls-summary/cmd"
)

func main() {
	cmd.Execute()
}
