package main

import (
	"os"
	"path/filepath"
	"testing"
)

// write drops 'source' into a fresh '<dir>/<name>.asm' fixture and returns its path.
func write(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name+".asm")
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		t.Fatalf("unexpected error writing fixture: %s", err)
	}
	return path
}

func TestHandler_AddTwoConstants(t *testing.T) {
	dir := t.TempDir()
	input := write(t, dir, "Add", "@2\nD=A\n@3\nD=D+A\n@0\nM=D\n")

	if status := Handler([]string{input}, nil); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	got, err := os.ReadFile(filepath.Join(dir, "Add.hack"))
	if err != nil {
		t.Fatalf("expected a sibling '.hack' file: %s", err)
	}

	want := "0000000000000010\n" + // @2
		"1110110000010000\n" + // D=A
		"0000000000000011\n" + // @3
		"1110000010010000\n" + // D=D+A
		"0000000000000000\n" + // @0
		"1110001100001000\n" // M=D
	if string(got) != want {
		t.Fatalf("unexpected output:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestHandler_LabelAndLoop(t *testing.T) {
	dir := t.TempDir()
	// An unconditional infinite loop guarded by a forward-referenced label.
	input := write(t, dir, "Loop", "@LOOP\n0;JMP\n(LOOP)\n@LOOP\n0;JMP\n")

	if status := Handler([]string{input}, nil); status != 0 {
		t.Fatalf("expected exit status 0, got %d", status)
	}

	got, err := os.ReadFile(filepath.Join(dir, "Loop.hack"))
	if err != nil {
		t.Fatalf("expected a sibling '.hack' file: %s", err)
	}

	lines := []string{
		"0000000000000010", // @LOOP -> ROM address 2 (the label contributes no line)
		"1110101010000111", // 0;JMP
		"0000000000000010", // @LOOP again, same address
		"1110101010000111", // 0;JMP
	}
	want := ""
	for _, l := range lines {
		want += l + "\n"
	}
	if string(got) != want {
		t.Fatalf("unexpected output:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestHandler_MissingInputFileFails(t *testing.T) {
	dir := t.TempDir()
	if status := Handler([]string{filepath.Join(dir, "absent.asm")}, nil); status == 0 {
		t.Fatalf("expected a non-zero exit status for a missing input file")
	}
}

func TestHandler_SyntaxErrorFails(t *testing.T) {
	dir := t.TempDir()
	input := write(t, dir, "Bad", "@@@\n")
	if status := Handler([]string{input}, nil); status == 0 {
		t.Fatalf("expected a non-zero exit status for malformed assembly")
	}
}
