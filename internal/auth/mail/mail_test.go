package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResetCodeMessage(t *testing.T) {
	msg, err := ResetCodeMessage("ada@example.org", "Ada", "012345", 6*time.Minute)
	require.NoError(t, err)
	require.Equal(t, "ada@example.org", msg.To)
	require.Equal(t, resetSubject, msg.Subject)
	require.Contains(t, msg.Body, "Hello Ada,")
	require.Contains(t, msg.Body, "    012345\n")
	require.Contains(t, msg.Body, "expires in 6 minutes")

	anon, err := ResetCodeMessage("x@example.org", "", "999999", 6*time.Minute)
	require.NoError(t, err)
	require.Contains(t, anon.Body, "Hello there,")
}

func TestSMTPMailerSend(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.org", Port: 587, Username: "u", Password: "p", From: "noreply@memberhub.org"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), Message{To: "ada@example.org", Subject: "Hi", Body: "line one\nline two"})
	require.NoError(t, err)

	require.Equal(t, "smtp.example.org:587", gotAddr)
	require.NotNil(t, gotAuth)
	require.Equal(t, "noreply@memberhub.org", gotFrom)
	require.Equal(t, []string{"ada@example.org"}, gotTo)
	require.Contains(t, gotMsg, "Subject: Hi\r\n")
	require.Contains(t, gotMsg, "@memberhub.org>\r\n")
	require.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline one\r\nline two"))
}

func TestSMTPMailerWrapsErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "a@b.c"})
	boom := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.Send(context.Background(), Message{To: "x@y.z"})
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, Message{To: "x@y.z"}), context.Canceled)
}
