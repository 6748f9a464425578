package db

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strings"

	"github.com/seqpart/partkeeper/internal/partition"
)

// SubprocessRunner shells out to the mariadb client in XML output mode. This
// path needs no credentials in the tool's own config: the client reads its
// usual option files.
type SubprocessRunner struct {
	exe string
}

func NewSubprocessRunner(exe string) *SubprocessRunner {
	return &SubprocessRunner{exe: exe}
}

type xmlResultSet struct {
	XMLName xml.Name `xml:"resultset"`
	Rows    []xmlRow `xml:"row"`
}

type xmlRow struct {
	Fields []xmlField `xml:"field"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Nil   string `xml:"nil,attr"`
	Value string `xml:",chardata"`
}

// parseXMLResult decodes the mariadb -X resultset document into rows.
func parseXMLResult(data []byte) ([]Row, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var result xmlResultSet
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing mariadb XML output: %w", err)
	}
	rows := make([]Row, 0, len(result.Rows))
	for _, xr := range result.Rows {
		row := make(Row, len(xr.Fields))
		for _, f := range xr.Fields {
			if f.Nil == "true" {
				row[f.Name] = nil
				continue
			}
			row[f.Name] = destring(f.Value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *SubprocessRunner) Run(ctx context.Context, stmt string) ([]Row, error) {
	cmd := exec.CommandContext(ctx, r.exe, "-X")
	cmd.Stdin = strings.NewReader(stmt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", r.exe, err, strings.TrimSpace(stderr.String()))
	}
	return parseXMLResult(stdout.Bytes())
}

func (r *SubprocessRunner) DBName(ctx context.Context) (string, error) {
	rows, err := r.Run(ctx, "SELECT DATABASE();")
	if err != nil {
		return "", err
	}
	if len(rows) != 1 {
		return "", fmt.Errorf("%w: expected one row from SELECT DATABASE()", partition.ErrTableInformation)
	}
	name, ok := rows[0]["DATABASE()"].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: no database selected", partition.ErrTableInformation)
	}
	return name, nil
}

func (r *SubprocessRunner) Close() error {
	return nil
}
