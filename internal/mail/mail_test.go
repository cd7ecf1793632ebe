// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package mail

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/geigerhub/internal/config"
)

// fakeSMTP accepts one session and records the DATA section.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	rcpt string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeSMTP) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
	reply("220 localhost ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			f.mu.Lock()
			f.rcpt = strings.TrimSpace(line)
			f.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			f.mu.Lock()
			f.data = body.String()
			f.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSMTPSenderDelivers(t *testing.T) {
	srv := startFakeSMTP(t)
	sender := NewSMTPSender(&config.MailConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    srv.port(),
		From:    "alerts@geigerhub.test",
		Timeout: 5 * time.Second,
	})
	sender.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := sender.Send(context.Background(), Message{
		To:      "owner@example.org",
		Subject: "Geigerhub alert for device roof\r\nBcc: evil@example.org",
		Body:    "line one\nline two",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-srv.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server session did not finish")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if !strings.Contains(srv.rcpt, "owner@example.org") {
		t.Errorf("RCPT = %q", srv.rcpt)
	}
	if !strings.Contains(srv.data, "Subject: Geigerhub alert for device roof  Bcc: evil@example.org\r\n") {
		t.Errorf("subject not sanitized:\n%s", srv.data)
	}
	if !strings.Contains(srv.data, "line one\r\nline two") {
		t.Errorf("body = %q", srv.data)
	}
	if !strings.Contains(srv.data, "Date: Tue, 02 Jan 2024 03:04:05 +0000") {
		t.Errorf("missing date header:\n%s", srv.data)
	}
}

func TestSMTPSenderDisabled(t *testing.T) {
	sender := NewSMTPSender(&config.MailConfig{})
	if err := sender.Send(context.Background(), Message{To: "a@b.c"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("got %v, want ErrDisabled", err)
	}
}

func TestSMTPSenderConnectionFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	sender := NewSMTPSender(&config.MailConfig{
		Enabled: true, Host: "127.0.0.1", Port: port, From: "a@b.c", Timeout: time.Second,
	})
	err = sender.Send(context.Background(), Message{To: "x@y.z", Subject: "s", Body: "b"})
	if err == nil || !strings.Contains(err.Error(), "connect") {
		t.Errorf("got %v, want connection error", err)
	}
}
