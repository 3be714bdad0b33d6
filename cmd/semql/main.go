// Command semql serves graph-backed GraphQL queries.
//
//	semql serve  -c semql.yaml          run the HTTP gateway
//	semql schema -c semql.yaml          print the synthesized schema
//	semql query  -c semql.yaml '{ ... }' run one query and print the result
//	semql validate -c semql.yaml        check the configuration
package main

import (
	"fmt"
	"os"
	"runtime"
)

// Build information.
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semql"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
