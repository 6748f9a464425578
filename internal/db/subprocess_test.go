package db

import (
	"testing"
)

const sampleXML = `<?xml version="1.0"?>

<resultset statement="SELECT id, name, price FROM menu" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <row>
	<field name="id">42</field>
	<field name="name">burger</field>
	<field name="price" xsi:nil="true" />
  </row>
  <row>
	<field name="id">43</field>
	<field name="name">fries</field>
	<field name="price">1.50</field>
  </row>
</resultset>
`

func TestParseXMLResult(t *testing.T) {
	rows, err := parseXMLResult([]byte(sampleXML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if rows[0]["id"] != int64(42) {
		t.Errorf("expected id 42, got %v (%T)", rows[0]["id"], rows[0]["id"])
	}
	if rows[0]["name"] != "burger" {
		t.Errorf("expected name burger, got %v", rows[0]["name"])
	}
	if v, ok := rows[0]["price"]; !ok || v != nil {
		t.Errorf("expected a nil price, got %v (present=%v)", v, ok)
	}
	if rows[1]["price"] != float64(1.5) {
		t.Errorf("expected price 1.5, got %v (%T)", rows[1]["price"], rows[1]["price"])
	}
}

func TestParseXMLResult_EmptyOutput(t *testing.T) {
	rows, err := parseXMLResult([]byte("\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != nil {
		t.Errorf("expected no rows for resultset-less output, got %v", rows)
	}
}

func TestParseXMLResult_Malformed(t *testing.T) {
	if _, err := parseXMLResult([]byte("<resultset><row>")); err == nil {
		t.Fatal("expected an error for truncated XML")
	}
}

func TestDestring(t *testing.T) {
	if v := destring("42"); v != int64(42) {
		t.Errorf("expected int64 42, got %v (%T)", v, v)
	}
	if v := destring("-7"); v != int64(-7) {
		t.Errorf("expected int64 -7, got %v (%T)", v, v)
	}
	if v := destring("1.25"); v != float64(1.25) {
		t.Errorf("expected float64 1.25, got %v (%T)", v, v)
	}
	if v := destring("utf8mb4"); v != "utf8mb4" {
		t.Errorf("expected the string back, got %v (%T)", v, v)
	}
}
