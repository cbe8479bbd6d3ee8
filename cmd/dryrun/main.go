// Command dryrun runs a report snapshot through aggregation, document
// building and the structural check battery without touching any transport.
// It writes the XML next to the input and prints the punch-list on failure,
// so filing teams can inspect exactly what would be uploaded.
//
// Usage: dryrun <snapshot.json>
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"refiler/internal/filing"
	"refiler/internal/filing/aggregator"
	"refiler/internal/filing/document"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dryrun <snapshot.json>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "dryrun:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var snap filing.ReportSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	req, err := aggregator.Build(snap)
	if err != nil {
		var aggErr *aggregator.AggregationError
		if errors.As(err, &aggErr) {
			fmt.Printf("report %s failed preflight with %d issue(s):\n", snap.ReportID, len(aggErr.Issues))
			for _, detail := range aggErr.Details() {
				fmt.Println("  -", detail)
			}
			os.Exit(1)
		}
		return err
	}

	doc, err := document.Build(req)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".xml"
	if err := os.WriteFile(out, doc.Bytes, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes, activity SeqNum %d)\n", out, len(doc.Bytes), doc.ActivitySeqNum)

	if problems := document.Check(doc.Bytes, time.Now()); len(problems) > 0 {
		fmt.Printf("structural checks FAILED (%d problem(s)):\n", len(problems))
		for _, p := range problems {
			fmt.Println("  -", p)
		}
		os.Exit(1)
	}
	fmt.Println("structural checks passed")
	return nil
}
