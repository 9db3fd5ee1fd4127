package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"go.uber.org/zap"

	"github.com/kaizorxxx/novastream/pkg/stream"
)

var _ stream.Cache = (*resultStore)(nil)

// resultStore is the store for resolved stream.Result objects, backed by
// BadgerDB so resolved sources survive restarts.
type resultStore struct {
	db        *badger.DB
	keyPrefix string
}

// Set implements the stream.Cache interface.
func (c *resultStore) Set(key string, result stream.Result) error {
	item := stream.ResultCacheItem{
		Result:  result,
		Created: time.Now(),
	}
	return gobSet(c.db, c.keyPrefix+key, item)
}

// Get implements the stream.Cache interface.
func (c *resultStore) Get(key string) (stream.Result, time.Time, bool, error) {
	var item stream.ResultCacheItem
	found, err := gobGet(c.db, c.keyPrefix+key, &item)
	if err != nil {
		return stream.Result{}, time.Time{}, found, err
	} else if !found {
		return stream.Result{}, time.Time{}, found, nil
	}
	return item.Result, item.Created, found, nil
}

func gobSet(db *badger.DB, key string, item interface{}) error {
	writer := bytes.Buffer{}
	encoder := gob.NewEncoder(&writer)
	if err := encoder.Encode(item); err != nil {
		return fmt.Errorf("Couldn't encode item: %v", err)
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), writer.Bytes())
	})
}

func gobGet(db *badger.DB, key string, target interface{}) (bool, error) {
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			reader := bytes.NewReader(val)
			decoder := gob.NewDecoder(reader)
			if err := decoder.Decode(target); err != nil {
				return fmt.Errorf("Couldn't decode item: %v", err)
			}
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	} else if err != nil {
		return true, err
	}
	return true, nil
}

// runBadgerGC runs BadgerDB's value log garbage collection in regular
// intervals until the context is canceled.
func runBadgerGC(ctx context.Context, db *badger.DB, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Badger returns an error when no rewrite was necessary, which is fine.
			if err := db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				logger.Error("Couldn't run BadgerDB garbage collection", zap.Error(err))
			}
		}
	}
}
