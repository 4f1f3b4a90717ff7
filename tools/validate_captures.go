//go:build ignore

// validate_captures checks the codec against real traffic: every record of a
// record log must decode and re-encode to the same bytes, and every framed
// capture must decode without checksum errors or resyncs.
//
// Usage: go run tools/validate_captures.go <directory-or-file>
//
// Set WCCP_LOG_LEVEL=debug to see each dropped frame.
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/muurk/wccp/internal/capture"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/protocol"
)

// Statistics tracks validation results
type Statistics struct {
	TotalFiles     int
	TotalPackets   int
	RoundTripOK    int
	Failures       []Failure
	PacketIDs      map[string]int
	PacketSizes    map[int]int
	FramerTotals   protocol.FramerStats
	TruncatedLogs  int
	SkippedRecords int
}

// Failure stores information about a packet that did not validate
type Failure struct {
	File   string
	Offset int64
	Raw    string
	Error  string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_captures <directory-or-file>")
		fmt.Println("Example: validate_captures captures/")
		fmt.Println("         validate_captures flight.log")
		os.Exit(1)
	}

	path := os.Args[1]

	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Printf("Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	stats := Statistics{
		PacketIDs:   make(map[string]int),
		PacketSizes: make(map[int]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		for _, pattern := range []string{"*.log", "*.bin"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				fmt.Printf("Error finding capture files: %v\n", err)
				os.Exit(1)
			}
			files = append(files, matches...)
		}
		if len(files) == 0 {
			fmt.Printf("No .log or .bin files found in %s\n", path)
			os.Exit(1)
		}
	} else {
		files = []string{path}
	}

	fmt.Printf("=== wccp Capture Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		if filepath.Ext(file) == ".log" {
			processLog(file, &stats)
		} else {
			processCapture(file, &stats)
		}
	}

	printStatistics(&stats)
	if len(stats.Failures) > 0 || stats.FramerTotals.ChecksumErrors > 0 {
		os.Exit(1)
	}
}

// processLog round-trips every record of a record log through the codec.
func processLog(filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	reader := capture.NewReader(f)
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("%s: stopped at byte %d: %v\n", filename, reader.Offset(), err)
			stats.TruncatedLogs++
			break
		}
		stats.TotalPackets++
		count(stats, rec.Packet, len(rec.Raw))

		encoded, err := rec.Packet.Encode()
		if err != nil {
			fail(stats, filename, rec.Offset, rec.Raw, fmt.Sprintf("re-encode error: %v", err))
			continue
		}
		if !bytes.Equal(encoded, rec.Raw) {
			fail(stats, filename, rec.Offset, rec.Raw,
				fmt.Sprintf("re-encoded bytes differ: %s", hex.EncodeToString(encoded)))
			continue
		}
		stats.RoundTripOK++
	}
	stats.SkippedRecords += reader.Skipped()
}

// processCapture runs a framed capture through the framer.
func processCapture(filename string, stats *Statistics) {
	stats.TotalFiles++

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}

	framer := protocol.NewFramer()
	for _, p := range framer.Feed(data) {
		stats.TotalPackets++
		size, _ := p.Size()
		count(stats, p, size)
		stats.RoundTripOK++
	}

	fs := framer.Stats()
	stats.FramerTotals.BytesIn += fs.BytesIn
	stats.FramerTotals.Frames += fs.Frames
	stats.FramerTotals.ChecksumErrors += fs.ChecksumErrors
	stats.FramerTotals.DecodeErrors += fs.DecodeErrors
	stats.FramerTotals.Resyncs += fs.Resyncs
	stats.FramerTotals.Discarded += fs.Discarded

	if rest := framer.Buffered(); rest > 0 {
		fmt.Printf("%s: %d trailing bytes without a complete frame\n", filename, rest)
	}
}

func count(stats *Statistics, p *protocol.Packet, size int) {
	stats.PacketIDs[fmt.Sprintf("%s %s", p.Kind, p.Key())]++
	stats.PacketSizes[size]++
}

func fail(stats *Statistics, file string, offset int64, raw []byte, msg string) {
	stats.Failures = append(stats.Failures, Failure{
		File:   file,
		Offset: offset,
		Raw:    hex.EncodeToString(raw),
		Error:  msg,
	})
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Total Packets:      %d\n", stats.TotalPackets)
	if stats.TotalPackets > 0 {
		fmt.Printf("Validated:          %d (%.2f%%)\n", stats.RoundTripOK,
			float64(stats.RoundTripOK)/float64(stats.TotalPackets)*100)
	}
	fmt.Printf("Skipped Records:    %d\n", stats.SkippedRecords)
	fmt.Printf("Truncated Logs:     %d\n", stats.TruncatedLogs)

	ft := stats.FramerTotals
	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("FRAMER COUNTERS (framed captures)\n")
	fmt.Printf("----------------------------------------\n")
	fmt.Printf("Bytes:              %d\n", ft.BytesIn)
	fmt.Printf("Frames:             %d\n", ft.Frames)
	fmt.Printf("Checksum Errors:    %d\n", ft.ChecksumErrors)
	fmt.Printf("Decode Errors:      %d\n", ft.DecodeErrors)
	fmt.Printf("Resyncs:            %d\n", ft.Resyncs)
	fmt.Printf("Discarded Bytes:    %d\n", ft.Discarded)

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("PACKET DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	ids := make([]string, 0, len(stats.PacketIDs))
	for id := range stats.PacketIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s: %d\n", id, stats.PacketIDs[id])
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("PACKET SIZE DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	sizes := make([]int, 0, len(stats.PacketSizes))
	for size := range stats.PacketSizes {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	for _, size := range sizes {
		fmt.Printf("%d bytes: %d packets\n", size, stats.PacketSizes[size])
	}

	if len(stats.Failures) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("FAILURES (%d total)\n", len(stats.Failures))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.Failures) > maxShow {
			fmt.Printf("(Showing first %d of %d failures)\n\n", maxShow, len(stats.Failures))
		}
		for i, failed := range stats.Failures {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File: %s (byte %d)\n", failed.File, failed.Offset)
			fmt.Printf("  Error: %s\n", failed.Error)
			preview := failed.Raw
			if len(preview) > 80 {
				preview = preview[:80] + "..."
			}
			fmt.Printf("  Packet: %s\n", preview)
		}
	}

	fmt.Printf("\n========================================\n")
	if len(stats.Failures) == 0 && stats.FramerTotals.ChecksumErrors == 0 {
		fmt.Printf("✅ SUCCESS: All packets validated\n")
	} else {
		fmt.Printf("⚠️  ISSUES FOUND: %d failures, %d checksum errors\n",
			len(stats.Failures), stats.FramerTotals.ChecksumErrors)
	}
	fmt.Printf("========================================\n")
}
