//go:build ignore

package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/muurk/multy/internal/zapi"
)

// Statistics tracks decoding results
type Statistics struct {
	TotalFiles     int
	TotalLines     int
	Requests       int
	Replies        int
	DecodeFailures int
	DeviceErrors   map[string]int // code -> count
	Calls          map[string]int // operation namespace/root -> count
	Failures       []Failure
}

// Failure stores information about one undecodable line
type Failure struct {
	File       string
	LineNumber int
	Error      string
	Excerpt    string
}

// Capture files hold one envelope per line, requests followed by the reply
// that answers them, as recorded by a TLS-terminating proxy in front of the
// router.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_envelopes <directory-or-file>")
		fmt.Println("Example: validate_envelopes captures/")
		fmt.Println("         validate_envelopes session-20260301.jsonl")
		os.Exit(1)
	}

	path := os.Args[1]
	stats := Statistics{
		DeviceErrors: make(map[string]int),
		Calls:        make(map[string]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.jsonl"))
		if err != nil || len(files) == 0 {
			fmt.Printf("No JSONL files found in %s\n", path)
			os.Exit(1)
		}
	}

	fmt.Printf("=== ZAPI Envelope Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
	if stats.DecodeFailures > 0 {
		os.Exit(1)
	}
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	var pending *zapi.CallSpec
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.TotalLines++

		fail := func(err error) {
			stats.DecodeFailures++
			stats.Failures = append(stats.Failures, Failure{
				File:       filename,
				LineNumber: lineNum,
				Error:      err.Error(),
				Excerpt:    string(line[:min(len(line), 80)]),
			})
		}

		if bytes.Contains(line, []byte(`"rpc-reply"`)) {
			stats.Replies++
			if pending == nil {
				fail(errors.New("reply without a preceding request"))
				continue
			}
			_, err := zapi.Decode(line, *pending)
			pending = nil
			var zerr *zapi.Error
			switch {
			case err == nil:
			case errors.As(err, &zerr) && (zerr.Kind == zapi.KindDevice || zerr.Kind == zapi.KindAuth):
				stats.DeviceErrors[zerr.Code]++
			default:
				fail(err)
			}
			continue
		}

		spec, _, err := zapi.DecodeRequest(line)
		if err != nil {
			fail(err)
			pending = nil
			continue
		}
		stats.Requests++
		stats.Calls[fmt.Sprintf("%s %s/%s", spec.Operation, spec.Namespace, spec.Root)]++
		pending = &spec
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error scanning %s: %v\n", filename, err)
	}
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Envelopes:          %d\n", stats.TotalLines)
	fmt.Printf("Requests:           %d\n", stats.Requests)
	fmt.Printf("Replies:            %d\n", stats.Replies)
	fmt.Printf("Decode Failures:    %d\n", stats.DecodeFailures)

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("CALLS\n")
	fmt.Printf("----------------------------------------\n")
	for _, call := range sortedKeys(stats.Calls) {
		fmt.Printf("%5d  %s\n", stats.Calls[call], call)
	}

	if len(stats.DeviceErrors) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("DEVICE ERRORS\n")
		fmt.Printf("----------------------------------------\n")
		for _, code := range sortedKeys(stats.DeviceErrors) {
			fmt.Printf("%5d  code %s\n", stats.DeviceErrors[code], code)
		}
	}

	if len(stats.Failures) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("DECODE FAILURES (%d total)\n", len(stats.Failures))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.Failures) > maxShow {
			fmt.Printf("(Showing first %d of %d failures)\n", maxShow, len(stats.Failures))
		}
		for i, failed := range stats.Failures {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File: %s (line %d)\n", failed.File, failed.LineNumber)
			fmt.Printf("  Error: %s\n", failed.Error)
			fmt.Printf("  Envelope: %s\n", failed.Excerpt)
		}
	}

	fmt.Printf("\n========================================\n")
	if stats.DecodeFailures == 0 {
		fmt.Printf("SUCCESS: every envelope decoded\n")
	} else {
		fmt.Printf("ISSUES FOUND: %d envelopes failed to decode\n", stats.DecodeFailures)
	}
	fmt.Printf("========================================\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
