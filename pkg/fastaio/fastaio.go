/*
Package fastaio provides functions for reading and writing
fasta format files
*/
package fastaio

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// FastaRecord is a simple struct for Fasta records
type FastaRecord struct {
	ID          string
	Description string
	Seq         string
	Idx         int
}

// ReadRecords reads fasta records from r. The ID is the first
// whitespace-delimited token of the header line.
func ReadRecords(f io.Reader) ([]FastaRecord, error) {
	var records []FastaRecord

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 1024*1024), 256*1024*1024)

	counter := 0
	first := true

	var id string
	var description string
	var seqBuffer strings.Builder

	for s.Scan() {
		line := s.Text()

		if first {
			if len(line) == 0 || line[0] != '>' {
				return nil, errors.New("badly formatted fasta file")
			}

			description = line[1:]
			id = strings.Fields(description)[0]

			first = false

		} else if len(line) > 0 && line[0] == '>' {

			records = append(records, FastaRecord{ID: id, Description: description, Seq: seqBuffer.String(), Idx: counter})
			counter++

			description = line[1:]
			id = strings.Fields(description)[0]
			seqBuffer.Reset()

		} else {
			seqBuffer.WriteString(line)
		}
	}

	if !first {
		records = append(records, FastaRecord{ID: id, Description: description, Seq: seqBuffer.String(), Idx: counter})
		counter++
	}

	if counter == 0 {
		return nil, errors.New("empty fasta file")
	}

	if err := s.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// ReadMap reads a fasta file into an id -> sequence map for random
// access by the annotation splitter.
func ReadMap(f io.Reader) (map[string]string, error) {
	records, err := ReadRecords(f)
	if err != nil {
		return nil, err
	}

	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.ID] = r.Seq
	}
	return m, nil
}

// WriteRecord writes one fasta record with the sequence on a single
// line.
func WriteRecord(w io.Writer, id, seq string) error {
	if _, err := w.Write([]byte(">" + id + "\n")); err != nil {
		return err
	}
	_, err := w.Write([]byte(seq + "\n"))
	return err
}
