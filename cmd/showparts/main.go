// showparts parses a saved SHOW CREATE TABLE statement and prints the
// partition layout the way partkeeper sees it. Useful for checking what the
// planner would work from without touching a database:
//
//	mariadb -e 'SHOW CREATE TABLE mydb.mytable\G' > mytable.txt
//	showparts mytable.txt
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/seqpart/partkeeper/internal/partition"
	"github.com/seqpart/partkeeper/internal/schema"
	"github.com/seqpart/partkeeper/internal/stats"
)

func main() {
	var data []byte
	var err error

	switch len(os.Args) {
	case 1:
		data, err = io.ReadAll(os.Stdin)
	case 2:
		data, err = os.ReadFile(os.Args[1])
	default:
		fmt.Fprintln(os.Stderr, "Usage: showparts [file]")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	m, err := schema.ParseCreateTable(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing CREATE TABLE: %v\n", err)
		os.Exit(1)
	}

	form := "RANGE"
	if m.Columns {
		form = "RANGE COLUMNS"
	}
	fmt.Printf("partitioned by %s over %v\n", form, m.RangeCols)
	fmt.Printf("%d partitions:\n", len(m.Partitions))
	for _, p := range m.Partitions {
		ts := "no date"
		if t, ok := p.Timestamp(); ok {
			ts = t.Format("2006-01-02")
			if !p.HasRealTime() {
				ts += " (synthetic)"
			}
		}
		switch p := p.(type) {
		case partition.Bounded:
			fmt.Printf("  %-24s %-32s %s\n", p.Name(), p.Position(), ts)
		case partition.Tail:
			fmt.Printf("  %-24s %-32s %s\n", p.Name(), "MAXVALUE", ts)
		}
	}

	s, err := stats.Gather(m.Partitions, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing statistics: %v\n", err)
		os.Exit(1)
	}
	if s.HasNewestAge {
		fmt.Printf("newest partition age: %s\n", s.TimeSinceNewest)
	}
	if s.HasMeanDelta {
		fmt.Printf("mean partition spacing: %s\n", s.MeanDelta)
	}
	if s.HasMaxDelta {
		fmt.Printf("max partition spacing: %s\n", s.MaxDelta)
	}
}
