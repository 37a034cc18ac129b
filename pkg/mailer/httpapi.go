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

type apiSender struct {
	http     httpclient.Interface
	endpoint string
	key      string
	from     string
}

func newApiSender(http httpclient.Interface) Sender {
	return &apiSender{
		http:     http,
		endpoint: commonconfig.GetMailApiEndpoint(),
		key:      commonconfig.GetMailApiKey(),
		from:     commonconfig.GetMailApiSender(),
	}
}

type apiMessage struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HtmlBody string   `json:"html_body,omitempty"`
	TextBody string   `json:"text_body,omitempty"`
}

func (s *apiSender) Send(to []string, subject, htmlBody, textBody string) bool {
	if s.endpoint == "" || s.key == "" {
		klog.Warningf("mail api backend selected but endpoint or key is missing, dropping mail %q", subject)
		return false
	}
	if len(to) == 0 {
		return false
	}
	result, err := s.http.Post(s.endpoint, &apiMessage{
		From:     s.from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}, "Authorization", "Bearer "+s.key)
	if err != nil {
		klog.ErrorS(err, "failed to reach mail api", "subject", subject)
		return false
	}
	if !result.IsSuccess() {
		klog.Warningf("mail api rejected message %q: %s", subject, result.String())
		return false
	}
	return true
}
