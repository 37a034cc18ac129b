/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package mailer

import (
	"gopkg.in/gomail.v2"
	"k8s.io/klog/v2"

	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
)

type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	startTLS bool
}

func newSmtpSender() Sender {
	return &smtpSender{
		host:     commonconfig.GetSmtpHost(),
		port:     commonconfig.GetSmtpPort(),
		username: commonconfig.GetSmtpUser(),
		password: commonconfig.GetSmtpPassword(),
		from:     commonconfig.GetSmtpSender(),
		startTLS: commonconfig.IsSmtpStartTLS(),
	}
}

func (s *smtpSender) Send(to []string, subject, htmlBody, textBody string) bool {
	if s.host == "" || s.from == "" {
		klog.Warningf("smtp backend selected but host or sender is missing, dropping mail %q", subject)
		return false
	}
	if len(to) == 0 {
		return false
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
		if htmlBody != "" {
			m.AddAlternative("text/html", htmlBody)
		}
	} else {
		m.SetBody("text/html", htmlBody)
	}

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	// implicit TLS (port 465) when STARTTLS is disabled
	d.SSL = !s.startTLS
	if err := d.DialAndSend(m); err != nil {
		klog.ErrorS(err, "failed to send mail", "subject", subject, "recipients", len(to))
		return false
	}
	return true
}
