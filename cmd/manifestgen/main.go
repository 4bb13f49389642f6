// Command manifestgen builds a manifest.json from a videos directory laid
// out as <dir>/<set>/<method>/<video>.mp4.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/preflab/pairwise/internal/manifest"
)

func main() {
	out := flag.String("out", "manifest.json", "output manifest file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: manifestgen [-out manifest.json] <videos-dir>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := manifest.Scan(flag.Arg(0))
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	if err := m.Validate(); err != nil {
		log.Fatalf("scanned manifest is not usable: %v", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("wrote %d sets to %s", len(m), *out)
}
