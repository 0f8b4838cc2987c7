package blaster

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/masht-bio/masht/pkg/config"
)

func testBlaster(outDir string) *Blaster {
	b := New(config.Default(), outDir, false)
	b.Out = new(bytes.Buffer)
	return b
}

func TestSplitByGO(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	// GO group with one member
	goFile := filepath.Join(dir, "transport.csv")
	goData := "Gene stable ID,Transcript stable ID,GO term\n" +
		"g1,t1,transport\n"
	if err := os.WriteFile(goFile, []byte(goData), 0644); err != nil {
		t.Fatal(err)
	}

	// q1's best hit is a member at 98%, q2's is a non-member at 50%
	blastFile := filepath.Join(dir, "reads.blast")
	blastData := "q1\tg1|t1\t98.0\t100\t2\t0\t1\t100\t1\t100\t1e-50\t180\n" +
		"q1\tg9|t9\t60.0\t100\t40\t0\t1\t100\t1\t100\t1e-10\t80\n" +
		"q2\tg9|t9\t50.0\t100\t50\t0\t1\t100\t1\t100\t1e-10\t70\n"
	if err := os.WriteFile(blastFile, []byte(blastData), 0644); err != nil {
		t.Fatal(err)
	}

	seqsDir := filepath.Join(dir, "seqs")
	if err := os.MkdirAll(seqsDir, 0755); err != nil {
		t.Fatal(err)
	}
	seqsData := ">q1\nAAAACCCC\n>q2\nGGGGTTTT\n"
	if err := os.WriteFile(filepath.Join(seqsDir, "reads.fasta"), []byte(seqsData), 0644); err != nil {
		t.Fatal(err)
	}

	b := testBlaster(outDir)
	if err := b.SplitByGO([]string{blastFile}, []string{goFile}, seqsDir, DefaultOutfmt, 90); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(filepath.Join(outDir, "transport", "filtered_reads.fasta"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != ">q1\nAAAACCCC\n" {
		t.Errorf("problem in TestSplitByGO():\n%s", out)
	}
}

func TestSplitByGONothingSelectedWritesNoFile(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	goFile := filepath.Join(dir, "transport.csv")
	goData := "Gene stable ID,Transcript stable ID,GO term\ng1,t1,transport\n"
	if err := os.WriteFile(goFile, []byte(goData), 0644); err != nil {
		t.Fatal(err)
	}

	// best hit is a member but fails the identity threshold
	blastFile := filepath.Join(dir, "reads.blast")
	blastData := "q1\tg1|t1\t40.0\t100\t60\t0\t1\t100\t1\t100\t1e-5\t50\n"
	if err := os.WriteFile(blastFile, []byte(blastData), 0644); err != nil {
		t.Fatal(err)
	}

	seqsDir := filepath.Join(dir, "seqs")
	if err := os.MkdirAll(seqsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(seqsDir, "reads.fasta"), []byte(">q1\nAAAA\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b := testBlaster(outDir)
	if err := b.SplitByGO([]string{blastFile}, []string{goFile}, seqsDir, DefaultOutfmt, 90); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "transport", "filtered_reads.fasta")); err == nil {
		t.Errorf("empty selection still wrote a file")
	}
}

func TestRunPrependsTabularFormatType(t *testing.T) {
	binDir := t.TempDir()
	script := "#!/bin/sh\necho \"$@\" >> \"$BLAST_LOG\"\n"
	if err := os.WriteFile(filepath.Join(binDir, "blastn"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	log := filepath.Join(binDir, "invocations.log")
	t.Setenv("BLAST_LOG", log)

	dbDir := t.TempDir()
	query := filepath.Join(t.TempDir(), "reads.fasta")
	if err := os.WriteFile(query, []byte(">q1\nACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}

	conf := config.Default()
	conf.BlastDir = binDir
	b := New(conf, t.TempDir(), false)
	b.Out = new(bytes.Buffer)

	// a single fasta classifies as a manifest; list it explicitly
	manifest := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(manifest, []byte(query+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Run(manifest, "db", dbDir, "blastn", 1e-50, 1, DefaultOutfmt); err != nil {
		t.Fatal(err)
	}

	recorded, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(recorded), "-outfmt 6 qseqid sseqid pident") {
		t.Errorf("problem in TestRunPrependsTabularFormatType():\n%s", recorded)
	}
}

func TestSplitByGOAcceptsFormatTypePrefix(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	goFile := filepath.Join(dir, "transport.csv")
	goData := "Gene stable ID,Transcript stable ID,GO term\ng1,t1,transport\n"
	if err := os.WriteFile(goFile, []byte(goData), 0644); err != nil {
		t.Fatal(err)
	}

	blastFile := filepath.Join(dir, "reads.blast")
	blastData := "q1\tg1|t1\t98.0\t100\t2\t0\t1\t100\t1\t100\t1e-50\t180\n"
	if err := os.WriteFile(blastFile, []byte(blastData), 0644); err != nil {
		t.Fatal(err)
	}

	seqsDir := filepath.Join(dir, "seqs")
	if err := os.MkdirAll(seqsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(seqsDir, "reads.fasta"), []byte(">q1\nAAAA\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b := testBlaster(outDir)

	// the leading format type must not shift the column indices
	if err := b.SplitByGO([]string{blastFile}, []string{goFile}, seqsDir, "6 "+DefaultOutfmt, 90); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(filepath.Join(outDir, "transport", "filtered_reads.fasta"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != ">q1\nAAAA\n" {
		t.Errorf("problem in TestSplitByGOAcceptsFormatTypePrefix():\n%s", out)
	}
}

func TestBestHitBeatsEarlierWeakerHit(t *testing.T) {
	dir := t.TempDir()

	// q1 hits a non-member first, then a member with higher identity:
	// only the best hit counts
	blastFile := filepath.Join(dir, "reads.blast")
	blastData := "q1\tg9|t9\t80.0\t100\t20\t0\t1\t100\t1\t100\t1e-20\t100\n" +
		"q1\tg1|t1\t95.0\t100\t5\t0\t1\t100\t1\t100\t1e-40\t160\n"
	if err := os.WriteFile(blastFile, []byte(blastData), 0644); err != nil {
		t.Fatal(err)
	}

	ids, err := bestHitsInGroup(blastFile, 0, 1, 2, map[string]bool{"g1|t1": true}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "q1" {
		t.Errorf("problem in TestBestHitBeatsEarlierWeakerHit(): %v", ids)
	}
}

func TestGoMartToGoSlimLists(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	goMart := filepath.Join(dir, "mart_export.txt")
	data := "Gene stable ID\tTranscript stable ID\tGOSlim GOA Description\n" +
		"g1\tt1\ttransport\n" +
		"g2\tt2\tmetabolism\n" +
		"g3\tt3\ttransport\n"
	if err := os.WriteFile(goMart, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	b := testBlaster(outDir)
	lists, err := b.GoMartToGoSlimLists(goMart, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(lists) != 2 {
		t.Fatalf("got %d lists, want 2", len(lists))
	}
	// sorted by term
	if filepath.Base(lists[0]) != "metabolism.csv" || filepath.Base(lists[1]) != "transport.csv" {
		t.Errorf("list files %v", lists)
	}

	transport, err := os.ReadFile(lists[1])
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(transport)), "\n")
	if len(lines) != 3 {
		t.Errorf("transport group has %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[1], "g1,t1") || !strings.HasPrefix(lines[2], "g3,t3") {
		t.Errorf("problem in TestGoMartToGoSlimLists():\n%s", transport)
	}
}
