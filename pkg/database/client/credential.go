/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

const TCredentialAccessRule = "credential_access_rule"

var (
	insertCredentialRuleFormat = `INSERT INTO ` + TCredentialAccessRule + ` (%s) VALUES (%s)`

	credentialRulesForUserCmd = fmt.Sprintf(`SELECT r.* FROM %s r
		JOIN %s ur ON ur.role_id = r.role_id
		WHERE ur.user_id = $1`, TCredentialAccessRule, TUserRole)
)

func (c *Client) InsertCredentialRule(ctx context.Context, rule *model.CredentialAccessRule) error {
	if rule == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*rule, insertCredentialRuleFormat), rule)
	if err != nil {
		klog.ErrorS(err, "failed to insert credential access rule db", "roleId", rule.RoleId)
	}
	return err
}

func (c *Client) DeleteCredentialRule(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TCredentialAccessRule), id)
	return err
}

func (c *Client) SelectCredentialRules(ctx context.Context) ([]*model.CredentialAccessRule, error) {
	var rows []*model.CredentialAccessRule
	err := c.q.SelectContext(ctx, &rows,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY role_id, credential_type`, TCredentialAccessRule))
	return rows, err
}

// GetCredentialRulesForUser returns every rule reachable through the user's
// roles. Evaluation of scopes happens in the authority package.
func (c *Client) GetCredentialRulesForUser(ctx context.Context, userId string) ([]*model.CredentialAccessRule, error) {
	var rows []*model.CredentialAccessRule
	err := c.q.SelectContext(ctx, &rows, credentialRulesForUserCmd, userId)
	return rows, err
}
