/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package mailer

import (
	"k8s.io/klog/v2"

	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/httpclient"
)

// Sender delivers notification mail. Delivery is best effort: implementations
// log failures and report them through the return value, they never block the
// caller on an error path.
type Sender interface {
	Send(to []string, subject, htmlBody, textBody string) bool
}

const (
	BackendSmtp = "smtp"
	BackendApi  = "api"
)

// NewSender picks the backend from configuration. An unset or unknown backend
// yields a sender that drops everything, so callers need no nil checks.
func NewSender() Sender {
	switch backend := commonconfig.GetMailBackend(); backend {
	case BackendSmtp:
		return newSmtpSender()
	case BackendApi:
		return newApiSender(httpclient.NewHttpClient())
	case "":
		klog.Infof("mail backend not configured, notifications are disabled")
		return noopSender{}
	default:
		klog.Warningf("unknown mail backend %q, notifications are disabled", backend)
		return noopSender{}
	}
}

type noopSender struct{}

func (noopSender) Send(to []string, subject, _, _ string) bool {
	klog.V(4).Infof("dropping mail %q to %v, no backend configured", subject, to)
	return false
}
