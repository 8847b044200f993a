package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/eval"
	"github.com/leafo/songc/internal/parser"
	"github.com/leafo/songc/internal/smfwriter"
)

func main() {
	ppq := flag.Int("ppq", 480, "ticks per quarter note, overriding the source default")
	jsonDiagnostics := flag.Bool("json-diagnostics", false, "emit diagnostics as one JSON object per line instead of plain text")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-ppq N] [-json-diagnostics] <path>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	path := flag.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		log.Printf("error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	prog, perr := parser.Parse(string(src), path)
	if perr != nil {
		reportDiagnostic(perr, *jsonDiagnostics)
		os.Exit(1)
	}

	song, warnings, eerr := eval.Run(prog, path, *ppq)
	if eerr != nil {
		reportDiagnostic(eerr, *jsonDiagnostics)
		os.Exit(1)
	}
	for _, w := range warnings.Items() {
		reportDiagnostic(w, *jsonDiagnostics)
	}

	data, werr := smfwriter.Write(song)
	if werr != nil {
		log.Printf("error writing MIDI: %v\n", werr)
		os.Exit(1)
	}

	outPath := outputPathFor(path)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		log.Printf("error writing %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", outPath)
}

func outputPathFor(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".mid"
}

func reportDiagnostic(d *diag.Diagnostic, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(d)
		if err != nil {
			fmt.Fprintln(os.Stderr, d.Error())
			return
		}
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	fmt.Fprintln(os.Stderr, d.Error())
}
