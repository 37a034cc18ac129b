/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/crypto"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/stringutil"
)

const (
	TokenExpire  = "The user's token has expired, please login again"
	InvalidToken = "The user's token is invalid, please login first"

	TokenDelim = ":"

	signingKeyBytes = 32
)

type TokenItem struct {
	UserId string
	Expire int64
}

// signingKey returns the shared token key, generating and persisting one on
// first use. Concurrent first calls converge on the stored winner.
func (a *Authority) signingKey(ctx context.Context) ([]byte, error) {
	a.keyOnce.Do(func() {
		candidate := stringutil.RandomKey(signingKeyBytes)
		encoded := json.MarshalSilently(stringutil.Base64Encode(candidate))
		stored, err := a.store.GetOrCreateMetadata(ctx, common.MetaSigningKey, encoded)
		if err != nil {
			a.keyErr = err
			return
		}
		var b64 string
		if err = json.Unmarshal(stored, &b64); err != nil {
			a.keyErr = err
			return
		}
		a.key = []byte(stringutil.Base64Decode(b64))
	})
	return a.key, a.keyErr
}

// GenerateToken creates a new authentication token for a user. The plaintext
// carries the user id and unix expiry, sealed with the shared signing key.
func (a *Authority) GenerateToken(ctx context.Context, item TokenItem) (string, error) {
	if item.UserId == "" {
		return "", fmt.Errorf("invalid token item parameters")
	}
	key, err := a.signingKey(ctx)
	if err != nil {
		return "", commonerrors.NewInternalError(err.Error())
	}
	tokenStr := item.UserId + TokenDelim + strconv.FormatInt(item.Expire, 10)
	return crypto.Encrypt([]byte(tokenStr), key)
}

// ValidateToken decrypts a token and returns its parts, or an error when the
// token is malformed or expired.
func (a *Authority) ValidateToken(ctx context.Context, token string) (*TokenItem, error) {
	key, err := a.signingKey(ctx)
	if err != nil {
		return nil, commonerrors.NewInternalError(err.Error())
	}
	plain, err := crypto.Decrypt(token, key)
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	parts := strings.Split(string(plain), TokenDelim)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		klog.Errorf("invalid user token, current len: %d", len(parts))
		return nil, fmt.Errorf("invalid token")
	}
	expire, err := strconv.ParseInt(parts[1], 10, 0)
	if err != nil {
		klog.ErrorS(err, "failed to parse token expire", "user", parts[0])
		return nil, fmt.Errorf("invalid token")
	}
	if time.Now().Unix() > expire {
		return nil, fmt.Errorf("%s", TokenExpire)
	}
	return &TokenItem{UserId: parts[0], Expire: expire}, nil
}
