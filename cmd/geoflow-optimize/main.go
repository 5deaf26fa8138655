// geoflow-optimize runs the level-of-detail pipeline over a GeoJSON file
// once and writes the optimized collection, for inspecting what a viewer
// would receive at a given zoom.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/civicmaps/geoflow/pkg/optimizer"
)

var (
	inFlag      = flag.String("in", "-", "Input GeoJSON file (- for stdin)")
	outFlag     = flag.String("out", "-", "Output file (- for stdout)")
	zoomFlag    = flag.Float64("zoom", 12, "Zoom level to optimize for")
	maxFeatures = flag.Int("max-features", 10000, "Feature budget")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var payload []byte
	var err error
	if *inFlag == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(*inFlag)
	}
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	fc := optimizer.Normalize(payload)
	cfg := optimizer.DefaultConfig()
	cfg.MaxFeatures = *maxFeatures

	strategy := optimizer.SelectStrategy(*zoomFlag, cfg)
	out := strategy.Apply(fc)
	log.Printf("Zoom %.1f: %d features in, %d out", *zoomFlag, len(fc.Features), len(out.Features))

	data, err := json.Marshal(out)
	if err != nil {
		log.Fatalf("Failed to marshal output: %v", err)
	}
	if *outFlag == "-" {
		if _, err := os.Stdout.Write(append(data, '\n')); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		return
	}
	if err := os.WriteFile(*outFlag, data, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *outFlag, err)
	}
}
