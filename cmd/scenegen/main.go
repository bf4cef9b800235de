// scenegen writes a built-in scene preset as a YAML file, as a starting
// point for hand-edited scene descriptions.
//
// Usage:
//
//	scenegen -preset drone -out drone.yaml
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gretchenboria/snaplock/internal/scene"
)

var (
	presetName = flag.String("preset", "", "Preset to emit (required)")
	outPath    = flag.String("out", "", "Output file (default: stdout)")
	list       = flag.Bool("list", false, "List available presets and exit")
)

func main() {
	flag.Parse()

	if *list {
		fmt.Println(strings.Join(scene.PresetNames(), "\n"))
		return
	}
	if *presetName == "" {
		log.Fatalf("-preset is required (one of %v)", scene.PresetNames())
	}

	spec, err := scene.Preset(*presetName)
	if err != nil {
		log.Fatal(err)
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		log.Fatalf("failed to marshal scene: %v", err)
	}

	if *outPath == "" {
		fmt.Print(string(data))
		return
	}
	if err := os.WriteFile(*outPath, data, 0644); err != nil {
		log.Fatalf("failed to write %s: %v", *outPath, err)
	}
	log.Printf("wrote scene %q to %s", spec.Name, *outPath)
}
