package fastaio

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadRecords(t *testing.T) {
	data := strings.NewReader(`>Seq1 some description
ACGT
ACGT
>Seq2
GGGG
`)

	records, err := ReadRecords(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "Seq1" || records[0].Seq != "ACGTACGT" {
		t.Errorf("problem in TestReadRecords(): %+v", records[0])
	}
	if records[0].Description != "Seq1 some description" {
		t.Errorf("description %q", records[0].Description)
	}
	if records[1].ID != "Seq2" || records[1].Idx != 1 {
		t.Errorf("problem in TestReadRecords(): %+v", records[1])
	}
}

func TestReadRecordsBadlyFormatted(t *testing.T) {
	if _, err := ReadRecords(strings.NewReader("ACGT\n")); err == nil {
		t.Errorf("no error for a missing header")
	}
	if _, err := ReadRecords(strings.NewReader("")); err == nil {
		t.Errorf("no error for an empty file")
	}
}

func TestReadMap(t *testing.T) {
	data := strings.NewReader(`>gene1|tx1 extra tokens
AAAA
>gene2|tx2
CCCC
`)
	m, err := ReadMap(data)
	if err != nil {
		t.Fatal(err)
	}
	if m["gene1|tx1"] != "AAAA" || m["gene2|tx2"] != "CCCC" {
		t.Errorf("problem in TestReadMap(): %v", m)
	}
}

func TestWriteRecord(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := WriteRecord(buf, "q1", "ACGT"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != ">q1\nACGT\n" {
		t.Errorf("problem in TestWriteRecord(): %q", buf.String())
	}
}
