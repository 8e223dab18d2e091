package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/vctrl/vctrl/pkg/object"
)

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func printBranches(out io.Writer, label string, branches []string) {
	for _, b := range branches {
		fmt.Fprintf(out, "  %s: %s\n", label, b)
	}
}

func sortedKeys(m map[string]object.Oid) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
