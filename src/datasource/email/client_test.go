package email

import (
	"MarksIntegration/src/config"
	"MarksIntegration/src/storage"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mailer "github.com/jordan-wright/email"
	"github.com/xuri/excelize/v2"
)

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func feedbackXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Student University Id")
	f.SetCellValue("Sheet1", "B1", "Feedback Mark")
	f.SetCellValue("Sheet1", "A2", 123)
	f.SetCellValue("Sheet1", "B2", 70)
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeHeader(t *testing.T) {
	cases := map[string]string{
		"plain subject":                        "plain subject",
		"=?UTF-8?B?QXNzaWdubWVudCAy?=":         "Assignment 2",
		"=?GBK?B?s8m8qA==?= CS429":             "成绩 CS429",
		"=?gb2312?B?s8m8qA==?=":                "成绩",
		"=?unknown-charset?Q?Assignment_2?= x": "Assignment 2 x",
	}
	for in, want := range cases {
		if got := decodeHeader(in); got != want {
			t.Errorf("decodeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterLatestTargetEmail(t *testing.T) {
	now := time.Now()
	emails := []*Email{
		{UID: 1, Subject: "CS429 Assignment 2 marks", Date: now.Add(-2 * time.Hour)},
		{UID: 2, Subject: "Lunch", Date: now},
		{UID: 3, Subject: "Re: CS429 Assignment 2 marks", Date: now.Add(-time.Hour)},
	}

	got := filterLatestTargetEmail(emails, "Assignment 2")
	if got == nil || got.UID != 3 {
		t.Errorf("got %+v, want UID 3", got)
	}
	if filterLatestTargetEmail(emails, "Assignment 3") != nil {
		t.Error("no email should match")
	}
}

func TestReadEmailAttachment(t *testing.T) {
	content := feedbackXLSX(t)

	msg := mailer.NewEmail()
	msg.From = "marker@example.ac.uk"
	msg.To = []string{"module-lead@example.ac.uk"}
	msg.Subject = "CS429 Assignment 2 feedback"
	msg.Text = []byte("see attached")
	if _, err := msg.Attach(bytes.NewReader(content), "CS429-Assignment-2.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"); err != nil {
		t.Fatal(err)
	}
	raw, err := msg.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	e, err := ReadEmail(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadEmail: %v", err)
	}
	if e.Subject != "CS429 Assignment 2 feedback" {
		t.Errorf("Subject = %q", e.Subject)
	}
	if len(e.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(e.Attachments))
	}
	if e.Attachments[0].Filename != "CS429-Assignment-2.xlsx" || !bytes.Equal(e.Attachments[0].Content, content) {
		t.Errorf("attachment %q mismatch", e.Attachments[0].Filename)
	}
}

type fakeMailService struct {
	emails     []*Email
	connectErr error
	connected  bool
	closed     bool
}

func (f *fakeMailService) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMailService) Disconnect() { f.closed = true }

func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) { return f.emails, nil }

func TestCheckAndProcessEmails(t *testing.T) {
	logger := newTestLogger(t)
	svc := &fakeMailService{emails: []*Email{
		{UID: 7, Subject: "CS429 Assignment 2", Date: time.Now()},
	}}

	got, err := CheckAndProcessEmails(svc, "Assignment 2", logger)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.UID != 7 {
		t.Errorf("got %+v", got)
	}
	if !svc.closed {
		t.Error("Disconnect not called")
	}

	got, err = CheckAndProcessEmails(&fakeMailService{}, "Assignment 2", logger)
	if err != nil || got != nil {
		t.Errorf("empty mailbox = %+v, %v", got, err)
	}

	boom := errors.New("boom")
	if _, err := CheckAndProcessEmails(&fakeMailService{connectErr: boom}, "x", logger); !errors.Is(err, boom) {
		t.Errorf("connect error = %v", err)
	}
}

func TestXLSXAttachmentHandler(t *testing.T) {
	logger := newTestLogger(t)
	dir := t.TempDir()
	h := NewXLSXAttachmentHandler("Assignment 2", dir, "CS429-Assignment-2.xlsx")

	e := &Email{
		UID:     42,
		Subject: "CS429 Assignment 2 feedback",
		Attachments: []*Attachment{
			{Filename: "notes.txt", Content: []byte("hi")},
			{Filename: "broken.xlsx", Content: []byte("not a workbook")},
			{Filename: "marks.XLSX", Content: feedbackXLSX(t)},
		},
	}

	saved, err := h.Handle(e, logger)
	if err != nil || !saved {
		t.Fatalf("Handle = %v, %v", saved, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "CS429-Assignment-2.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, e.Attachments[2].Content) {
		t.Error("saved content differs from attachment")
	}
	if !h.IsProcessed(42) {
		t.Error("email should be marked processed")
	}

	// 重复处理直接跳过
	if saved, err := h.Handle(e, logger); saved || err != nil {
		t.Errorf("second Handle = %v, %v", saved, err)
	}

	other := &Email{UID: 43, Subject: "Lunch"}
	if saved, err := h.Handle(other, logger); saved || err != nil {
		t.Errorf("subject mismatch = %v, %v", saved, err)
	}

	noXLSX := &Email{UID: 44, Subject: "Assignment 2", Attachments: []*Attachment{{Filename: "a.csv"}}}
	if _, err := h.Handle(noXLSX, logger); err == nil {
		t.Error("email without xlsx should fail")
	}
}

func TestBuildEmail(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SendEmail.Username = "grades@example.ac.uk"

	if _, err := buildEmail(cfg, "body", ""); err == nil {
		t.Error("no recipients should fail")
	}

	cfg.SendEmail.To = []string{"lead@example.ac.uk"}
	path := filepath.Join(t.TempDir(), "CS429-15_updated.xlsx")
	if err := os.WriteFile(path, feedbackXLSX(t), 0644); err != nil {
		t.Fatal(err)
	}

	e, err := buildEmail(cfg, "merged", path)
	if err != nil {
		t.Fatal(err)
	}
	if e.Subject != "Updated gradebook: CS429-15_updated.xlsx" {
		t.Errorf("Subject = %q", e.Subject)
	}
	if len(e.Attachments) != 1 || e.Attachments[0].Filename != "CS429-15_updated.xlsx" {
		t.Errorf("attachments = %+v", e.Attachments)
	}

	if _, err := buildEmail(cfg, "merged", filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Error("missing attachment should fail")
	}
}
