package notify

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
)

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func sampleReport() core.Report {
	r := core.Report{
		Date: core.NewDate(2025, 2, 19),
		Values: map[core.Metric]float64{
			core.Donations: 100, core.SalesFromBooks: 50, core.FoodDonation: 25,
			core.LargeGroupChurch: 40, core.Children: 10, core.ChildrenWorkers: 5,
			core.Teens: 3,
		},
	}
	r.ApplyTotals(core.ComputeTotals(r.Values))
	return r
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &strings.Builder{}})
}

func TestRenderReport(t *testing.T) {
	subject, body, err := RenderReport(sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "Final CR Report: 19FEB25", subject)
	assert.Contains(t, body, "<li><strong>Large Group:</strong> 40</li>")
	assert.Contains(t, body, "<li><strong>Total Attendance:</strong> 55</li>")
	assert.Contains(t, body, "<li><strong>Total Funds:</strong> $175.00</li>")
	assert.Contains(t, body, "<li><strong>Sales from Books:</strong> $50.00</li>")
	assert.Contains(t, body, "<li><strong>Total Small Group:</strong> 3</li>")
	assert.Contains(t, body, "<li><strong>Baptisms:</strong> 0</li>")
	assert.Contains(t, body, noComment)
}

func TestRenderReportEscapesComment(t *testing.T) {
	r := sampleReport()
	r.Comment = `<script>alert("x")</script> & friends`

	_, body, err := RenderReport(r)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "&amp; friends")
}

func TestEmailNotifier(t *testing.T) {
	m := &fakeMailer{}
	from := mail.Address{Name: "Friday Night Numbers", Address: "numbers@example.org"}
	n := NewEmailNotifier(m, from, []string{"leader@example.org"}, testLogger())

	require.NoError(t, n.NotifyFinalized(context.Background(), sampleReport()))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "Final CR Report: 19FEB25", m.sent[0].Subject)
	assert.Equal(t, []string{"leader@example.org"}, m.sent[0].To)
	assert.Equal(t, from, m.sent[0].From)
}

func TestEmailNotifierFailureWrapsErrEmailFailed(t *testing.T) {
	m := &fakeMailer{err: errors.New("535 authentication failed")}
	n := NewEmailNotifier(m, mail.Address{Address: "a@example.org"}, []string{"b@example.org"}, testLogger())

	err := n.NotifyFinalized(context.Background(), sampleReport())
	assert.ErrorIs(t, err, core.ErrEmailFailed)

	n = NewEmailNotifier(&fakeMailer{}, mail.Address{Address: "a@example.org"}, nil, testLogger())
	assert.ErrorIs(t, n.NotifyFinalized(context.Background(), sampleReport()), core.ErrEmailFailed)
}

func TestDisabledNotifier(t *testing.T) {
	assert.NoError(t, Disabled{Logger: testLogger()}.NotifyFinalized(context.Background(), sampleReport()))
	assert.NoError(t, Disabled{}.NotifyFinalized(context.Background(), sampleReport()))
}

func TestNewMsg(t *testing.T) {
	msg := Message{
		From:    mail.Address{Name: "Friday Night Numbers", Address: "numbers@example.org"},
		To:      []string{"a@example.org", "b@example.org"},
		Subject: "Final CR Report: 19FEB25",
		HTML:    "<p>hello</p>",
	}
	gm, err := newMsg(msg)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = gm.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "numbers@example.org")
	assert.Contains(t, raw, "Friday Night Numbers")
	assert.Contains(t, raw, "a@example.org")
	assert.Contains(t, raw, "b@example.org")
	assert.Contains(t, raw, "Subject: Final CR Report: 19FEB25")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "hello")
}

func TestNewMsgRejectsBadRecipient(t *testing.T) {
	msg := Message{
		From:    mail.Address{Address: "numbers@example.org"},
		To:      []string{"not an address"},
		Subject: "x",
		HTML:    "<p>x</p>",
	}
	_, err := newMsg(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient address")
}

func TestNewSMTPMailerDefaults(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.org"})
	assert.Equal(t, 587, m.cfg.Port)
	assert.Equal(t, 30*time.Second, m.cfg.Timeout)
	assert.Len(t, m.clientOptions(), 3)

	m = NewSMTPMailer(SMTPConfig{Host: "smtp.example.org", Port: 2525, Username: "u", APIKey: "k", Timeout: time.Second})
	assert.Equal(t, 2525, m.cfg.Port)
	assert.Equal(t, time.Second, m.cfg.Timeout)
	assert.Len(t, m.clientOptions(), 6)
}
