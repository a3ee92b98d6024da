// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"
)

// SMTPConfig carries the relay settings, normally read from the
// environment. All fields except Username/Password are required.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPConfigFromEnv reads SMTP_* variables, with the same quote/space
// sanitization we apply to every env value. ok is false when the
// channel is unconfigured, which is a supported deployment mode.
func SMTPConfigFromEnv() (SMTPConfig, bool) {
	clean := func(key string) string {
		return strings.Trim(os.Getenv(key), "\"' ")
	}
	cfg := SMTPConfig{
		Host:     clean("SMTP_HOST"),
		Port:     clean("SMTP_PORT"),
		Username: clean("SMTP_USERNAME"),
		Password: clean("SMTP_PASSWORD"),
		From:     clean("SMTP_FROM"),
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.Host == "" || cfg.From == "" {
		return SMTPConfig{}, false
	}
	return cfg, true
}

// SMTPSender delivers messages through a plain SMTP relay. Kept
// deliberately small: this is a one-time-code channel, not a mail
// product. The Sender interface is the seam for swapping in a provider
// API client.
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender builds a sender for the given relay.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := s.config.Host + ":" + s.config.Port

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	payload := []byte("From: " + s.config.From + "\r\n" +
		"To: " + msg.Recipient + "\r\n" +
		"Subject: " + msg.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
		"\r\n" +
		msg.Body + "\r\n")

	// smtp.SendMail has no context plumbing; run it on the side and
	// honor the attempt deadline ourselves.
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, s.config.From, []string{msg.Recipient}, payload)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("smtp send aborted: %w", ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send to %s failed: %w", msg.Recipient, err)
		}
		return nil
	}
}
