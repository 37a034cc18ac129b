/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	dbutils "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/utils"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/sets"
)

const (
	DESC = "desc"
	ASC  = "asc"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx so the same entity
// methods run inside and outside a transaction.
type queryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type Client struct {
	db             *sqlx.DB
	gorm           *gorm.DB
	q              queryer
	RequestTimeout time.Duration
}

func NewClient() (*Client, error) {
	cfg := &dbutils.DBConfig{
		DBName:         commonconfig.GetDBName(),
		Username:       commonconfig.GetDBUser(),
		Password:       commonconfig.GetDBPassword(),
		Host:           commonconfig.GetDBHost(),
		SSLMode:        commonconfig.GetDBSslMode(),
		Port:           commonconfig.GetDBPort(),
		MaxIdleConns:   commonconfig.GetDBMaxIdleConns(),
		MaxOpenConns:   commonconfig.GetDBMaxOpenConns(),
		MaxIdleTime:    time.Duration(commonconfig.GetDBMaxIdleTimeSecond()) * time.Second,
		MaxLifetime:    time.Duration(commonconfig.GetDBMaxLifetimeSecond()) * time.Second,
		ConnectTimeout: 10,
	}
	return NewClientWithConfig(cfg)
}

func NewClientWithConfig(cfg *dbutils.DBConfig) (*Client, error) {
	db, err := dbutils.Connect(cfg, dbutils.PgDriver)
	if err != nil {
		return nil, err
	}
	gormDB, err := dbutils.ConnectGorm(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		db:             db,
		gorm:           gormDB,
		q:              db.Unsafe(),
		RequestTimeout: time.Duration(commonconfig.GetDBRequestTimeoutSecond()) * time.Second,
	}, nil
}

// NewClientWithDB wraps an existing sqlx connection. Used by tests with a
// mocked sql driver; the gorm handle stays nil and Migrate is unavailable.
func NewClientWithDB(db *sqlx.DB) *Client {
	return &Client{db: db, q: db.Unsafe()}
}

// WithTx runs fn against a client whose queries share one transaction.
// fn returning an error rolls the transaction back; otherwise it commits.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Client) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	txClient := &Client{
		db:             c.db,
		gorm:           c.gorm,
		q:              tx.Unsafe(),
		RequestTimeout: c.RequestTimeout,
	}
	if err = fn(txClient); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			klog.ErrorS(rbErr, "failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}

func (c *Client) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.RequestTimeout)
	}
	return ctx, func() {}
}

// genInsertCommand fills an INSERT format string with the column list and the
// named-parameter list derived from the struct's db tags, skipping the given
// columns (typically auto-generated ones).
func genInsertCommand(obj interface{}, format string, skips ...string) string {
	t := reflect.TypeOf(obj)
	skip := sets.NewSetByKeys(skips...)
	var cols []string
	var vals []string
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" || skip.Has(tag) {
			continue
		}
		cols = append(cols, tag)
		vals = append(vals, ":"+tag)
	}
	return fmt.Sprintf(format, strings.Join(cols, ", "), strings.Join(vals, ", "))
}

// GetFieldTags returns a struct's field-name to db-tag mapping.
func GetFieldTags(obj interface{}) map[string]string {
	t := reflect.TypeOf(obj)
	result := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		result[t.Field(i).Name] = tag
	}
	return result
}

func GetFieldTag(tags map[string]string, field string) string {
	return tags[field]
}
