package processor

import (
	"MarksIntegration/src/config"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeXLSX(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func newTestProcessor(t *testing.T) (*GradeProcessor, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseDir = t.TempDir()
	return NewGradeProcessor(cfg, config.DefaultDataConfig()), cfg
}

func TestGradeProcessorRun(t *testing.T) {
	p, cfg := newTestProcessor(t)

	writeXLSX(t, cfg.FeedbackPath(), [][]interface{}{
		{"Student University Id", "Name", "Feedback Mark", "Adjustment Mark"},
		{123, "Ann", 70, 75},
		{124, "Bob", 60, nil},
		{555, "Eve", 40, nil},
	})
	writeXLSX(t, cfg.GradebookPath(), [][]interface{}{
		{nil, "Student", nil, "Coursework", nil},
		{"Name", "University ID", "Email", "Assignment 1", "Assignment 2"},
		{"Ann", 123, "ann@example.ac.uk", 50, 1},
		{"Zed", 999, "zed@example.ac.uk", 45, 1},
		{"Bob", 124, "bob@example.ac.uk", 65, 1},
	})

	summary, err := p.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.GradebookRows != 3 || summary.FeedbackRows != 3 {
		t.Errorf("rows = %d/%d", summary.GradebookRows, summary.FeedbackRows)
	}
	if summary.MatchedRows != 2 || summary.UnmatchedRows != 1 || summary.AdjustedRows != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.AssignmentColumn != "Coursework Assignment 2" {
		t.Errorf("AssignmentColumn = %q", summary.AssignmentColumn)
	}
	if !strings.Contains(summary.String(), "匹配 2 行") {
		t.Errorf("String() = %q", summary.String())
	}

	f, err := excelize.OpenFile(cfg.OutputPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatal(err)
	}

	// 单行表头 + 3行数据
	if len(rows) != 4 {
		t.Fatalf("output rows = %d, want 4", len(rows))
	}
	wantHeader := []string{"Name", "Student University ID", "Student Email", "Coursework Assignment 1", "Coursework Assignment 2"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %q", rows[0])
	}
	if !reflect.DeepEqual(rows[1], []string{"Ann", "123", "ann@example.ac.uk", "50", "75"}) {
		t.Errorf("Ann = %q", rows[1])
	}
	if len(rows[2]) > 4 && rows[2][4] != "" {
		t.Errorf("Zed should be blank, got %q", rows[2][4])
	}
	if rows[2][3] != "45" {
		t.Errorf("Assignment 1 must be untouched, got %q", rows[2][3])
	}
	if !reflect.DeepEqual(rows[3], []string{"Bob", "124", "bob@example.ac.uk", "65", "60"}) {
		t.Errorf("Bob = %q", rows[3])
	}
}

func TestGradeProcessorKeepsOriginalHeader(t *testing.T) {
	p, cfg := newTestProcessor(t)

	writeXLSX(t, cfg.FeedbackPath(), [][]interface{}{
		{"Student University Id", "Feedback Mark", "Adjustment Mark"},
		{123, 70, "N/A"},
	})
	writeXLSX(t, cfg.GradebookPath(), [][]interface{}{
		{nil, "Student", nil, "Coursework", nil, nil},
		{nil, "University ID", "Notes", "Assignment 2", "Notes", "Notes"},
		{1, 123, "a", 0, "b", "c"},
	})

	if _, err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := excelize.OpenFile(cfg.OutputPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatal(err)
	}

	// 空列名和重复列名原样写回
	wantHeader := []string{"", "Student University ID", "Student Notes", "Coursework Assignment 2", "Coursework Notes", "Coursework Notes"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %q, want %q", rows[0], wantHeader)
	}
	if !reflect.DeepEqual(rows[1], []string{"1", "123", "a", "70", "b", "c"}) {
		t.Errorf("row = %q", rows[1])
	}
}

func TestGradeProcessorMissingInput(t *testing.T) {
	p, cfg := newTestProcessor(t)

	_, err := p.Run()
	if err == nil {
		t.Fatal("expected error for missing feedback file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap not-exist: %v", err)
	}

	writeXLSX(t, cfg.FeedbackPath(), [][]interface{}{
		{"Student University Id", "Feedback Mark", "Adjustment Mark"},
		{123, 70, nil},
	})
	if _, err := p.Run(); err == nil || !strings.Contains(err.Error(), "成绩册") {
		t.Errorf("expected gradebook error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.BaseDir, cfg.OutputFile)); !errors.Is(err, os.ErrNotExist) {
		t.Error("no output should be written on failure")
	}
}

func TestGradeProcessorAmbiguousAssignment(t *testing.T) {
	p, cfg := newTestProcessor(t)

	writeXLSX(t, cfg.FeedbackPath(), [][]interface{}{
		{"Student University Id", "Feedback Mark", "Adjustment Mark"},
		{123, 70, nil},
	})
	writeXLSX(t, cfg.GradebookPath(), [][]interface{}{
		{"Student", "Coursework", nil},
		{"University ID", "Assignment 2", "Assignment 2 Resit"},
		{123, 1, 2},
	})

	if _, err := p.Run(); err == nil || !strings.Contains(err.Error(), "Assignment 2") {
		t.Errorf("expected column count error, got %v", err)
	}
}
