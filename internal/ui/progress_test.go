package ui

import (
	"strings"
	"testing"
)

func TestNewProgressBar(t *testing.T) {
	bar := NewProgressBar(100, "test operation")
	if bar == nil {
		t.Fatal("NewProgressBar should not return nil")
	}

	if err := bar.Add(10); err != nil {
		t.Errorf("Add() error = %v", err)
	}
	if err := bar.Set(50); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if err := bar.Finish(); err != nil {
		t.Errorf("Finish() error = %v", err)
	}
	if !bar.IsFinished() {
		t.Error("IsFinished() should be true after Finish()")
	}
}

func TestNewPercentBar(t *testing.T) {
	bar := NewPercentBar("installing")
	if bar == nil {
		t.Fatal("NewPercentBar should not return nil")
	}

	bar.Describe("installing with apt")
	if err := bar.Set(100); err != nil {
		t.Errorf("Set(100) error = %v", err)
	}
	if !bar.IsFinished() {
		t.Error("IsFinished() should be true at 100%")
	}
}

func TestNewIndeterminateProgressBar(t *testing.T) {
	bar := NewIndeterminateProgressBar("working")
	if bar == nil {
		t.Fatal("NewIndeterminateProgressBar should not return nil")
	}

	if err := bar.Add(1); err != nil {
		t.Errorf("Add() error = %v", err)
	}
	if err := bar.Clear(); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
}

func TestProgressReader(t *testing.T) {
	content := "some package bytes"
	reader := NewProgressReader(strings.NewReader(content), int64(len(content)), "hashing")

	buf := make([]byte, 4)
	total := 0
	for {
		n, err := reader.Read(buf)
		total += n
		if err != nil {
			break
		}
	}

	if total != len(content) {
		t.Errorf("read %d bytes, want %d", total, len(content))
	}
	if err := reader.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
