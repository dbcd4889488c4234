// Command changedetect trains self-organizing maps on satellite-derived
// index imagery and scores samples for change and anomaly detection.
//
// Usage:
//
//	changedetect train   -samples data.csv -rows 10 -cols 10 [flags]
//	changedetect score   -run <id> -samples data.csv [flags]
//	changedetect report  -run <id> -out report.html [flags]
//	changedetect demo    [flags]
//	changedetect runs    [flags]
//	changedetect migrate <up|down|status|force N> [flags]
//	changedetect version
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gge-data/changedetect/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `changedetect - SOM change/anomaly detection for index imagery

Commands:
  train     train a map on an N x D sample matrix and store the run
  score     score samples against a stored run
  report    render HTML/PNG diagnostics for a stored run
  demo      synthesize a toy index cube, train, score, and render
  runs      list stored training runs
  migrate   manage the database schema (up, down, status, force N)
  version   print build information

Run 'changedetect <command> -h' for command flags.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "train":
		err = runTrain(args)
	case "score":
		err = runScore(args)
	case "report":
		err = runReport(args)
	case "demo":
		err = runDemo(args)
	case "runs":
		err = runList(args)
	case "migrate":
		err = runMigrate(args)
	case "version":
		fmt.Printf("changedetect %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
