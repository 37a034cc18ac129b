/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const TAppMetadata = "app_metadata"

var (
	getMetadataCmd = fmt.Sprintf(`SELECT * FROM %s WHERE key = $1 LIMIT 1`, TAppMetadata)
	setMetadataCmd = fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, TAppMetadata)
	insertMetadataIfAbsentCmd = fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING`, TAppMetadata)
)

func (c *Client) GetMetadata(ctx context.Context, key string) (*model.AppMetadata, error) {
	var rows []*model.AppMetadata
	if err := c.q.SelectContext(ctx, &rows, getMetadataCmd, key); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("Metadata", key)
	}
	return rows[0], nil
}

// SetMetadata writes a value, last-writer-wins.
func (c *Client) SetMetadata(ctx context.Context, key string, value []byte) error {
	_, err := c.q.ExecContext(ctx, setMetadataCmd, key, value)
	return err
}

// GetOrCreateMetadata returns the stored value for key, inserting the fallback
// first when absent. Concurrent callers converge on one stored value: the
// insert does nothing on conflict and the read afterwards sees the winner.
func (c *Client) GetOrCreateMetadata(ctx context.Context, key string, fallback []byte) ([]byte, error) {
	if _, err := c.q.ExecContext(ctx, insertMetadataIfAbsentCmd, key, fallback); err != nil {
		return nil, err
	}
	meta, err := c.GetMetadata(ctx, key)
	if err != nil {
		return nil, err
	}
	return meta.Value, nil
}

func (c *Client) DeleteMetadata(ctx context.Context, key string) error {
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, TAppMetadata), key)
	return err
}
