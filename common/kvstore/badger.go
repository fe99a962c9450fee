// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package kvstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// badgerdb keeps every column family in one keyspace. A key is stored as
// len(cf) | cf | key so that each column family is a contiguous range.
type (
	badgerdb struct {
		path    string
		db      *badger.DB
		columns map[CF]struct{}
		lock    sync.RWMutex
	}
	badgerListReader struct {
		txn      *badger.Txn
		iterator *badger.Iterator
		cfPrefix []byte
		prefix   []byte
		isFirst  bool
	}
	badgerWriteBatch struct {
		s     *badgerdb
		txn   *badger.Txn
		count int
		err   error
	}
)

func newBadger(ctx context.Context, path string, option *Option) (Store, error) {
	var opts badger.Options
	if option.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, errors.New("path is empty")
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil).WithSyncWrites(option.Sync)
	if option.BlockSize > 0 {
		opts = opts.WithBlockSize(option.BlockSize)
	}
	if option.BlockCache > 0 {
		opts = opts.WithBlockCacheSize(int64(option.BlockCache))
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	s := &badgerdb{
		path:    path,
		db:      db,
		columns: map[CF]struct{}{defaultCF: {}},
	}
	for _, col := range option.ColumnFamily {
		s.columns[col] = struct{}{}
	}
	return s, nil
}

func columnPrefix(col CF) []byte {
	if col == "" {
		col = defaultCF
	}
	p := make([]byte, 0, len(col)+1)
	p = append(p, byte(len(col)))
	return append(p, col...)
}

func columnKey(col CF, key []byte) []byte {
	p := columnPrefix(col)
	return append(p, key...)
}

func (s *badgerdb) checkColumn(col CF) error {
	if !s.CheckColumns(col) {
		return ErrColumnNotExist
	}
	return nil
}

func (s *badgerdb) CreateColumn(col CF) error {
	if len(col) > 255 {
		return errors.New("column family name too long")
	}
	s.lock.Lock()
	s.columns[col] = struct{}{}
	s.lock.Unlock()
	return nil
}

func (s *badgerdb) GetAllColumns() (ret []CF) {
	s.lock.RLock()
	for col := range s.columns {
		ret = append(ret, col)
	}
	s.lock.RUnlock()
	return
}

func (s *badgerdb) CheckColumns(col CF) bool {
	if col == "" {
		return true
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	_, ok := s.columns[col]
	return ok
}

func (s *badgerdb) GetRaw(ctx context.Context, col CF, key []byte) (value []byte, err error) {
	if err = s.checkColumn(col); err != nil {
		return nil, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(columnKey(col, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *badgerdb) SetRaw(ctx context.Context, col CF, key []byte, value []byte) error {
	if err := s.checkColumn(col); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(columnKey(col, key), value)
	})
}

func (s *badgerdb) Delete(ctx context.Context, col CF, key []byte) error {
	if err := s.checkColumn(col); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(columnKey(col, key))
	})
}

func (s *badgerdb) List(ctx context.Context, col CF, prefix []byte, marker []byte) ListReader {
	if err := s.checkColumn(col); err != nil {
		return errListReader{err: err}
	}
	cfPrefix := columnPrefix(col)
	scan := columnKey(col, prefix)
	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = scan
	it := txn.NewIterator(opts)
	if len(marker) > 0 {
		it.Seek(columnKey(col, marker))
	} else {
		it.Seek(scan)
	}
	return &badgerListReader{
		txn:      txn,
		iterator: it,
		cfPrefix: cfPrefix,
		prefix:   scan,
		isFirst:  true,
	}
}

func (lr *badgerListReader) ReadNextCopy() (key []byte, value []byte, err error) {
	if !lr.isFirst {
		lr.iterator.Next()
	}
	lr.isFirst = false
	if !lr.iterator.ValidForPrefix(lr.prefix) {
		return nil, nil, nil
	}
	item := lr.iterator.Item()
	value, err = item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	key = bytes.TrimPrefix(item.KeyCopy(nil), lr.cfPrefix)
	return key, value, nil
}

func (lr *badgerListReader) Close() {
	lr.iterator.Close()
	lr.txn.Discard()
}

func (s *badgerdb) NewWriteBatch() WriteBatch {
	return &badgerWriteBatch{s: s, txn: s.db.NewTransaction(true)}
}

func (w *badgerWriteBatch) Put(col CF, key, value []byte) {
	if w.err != nil {
		return
	}
	if w.err = w.s.checkColumn(col); w.err != nil {
		return
	}
	w.err = w.txn.Set(columnKey(col, key), value)
	w.count++
}

func (w *badgerWriteBatch) Delete(col CF, key []byte) {
	if w.err != nil {
		return
	}
	if w.err = w.s.checkColumn(col); w.err != nil {
		return
	}
	w.err = w.txn.Delete(columnKey(col, key))
	w.count++
}

func (w *badgerWriteBatch) Count() int {
	return w.count
}

func (w *badgerWriteBatch) Close() {
	w.txn.Discard()
}

func (s *badgerdb) Write(ctx context.Context, batch WriteBatch) error {
	w := batch.(*badgerWriteBatch)
	if w.err != nil {
		return w.err
	}
	return w.txn.Commit()
}

func (s *badgerdb) Stats(ctx context.Context) (Stats, error) {
	lsm, vlog := s.db.Size()
	return Stats{Used: uint64(lsm + vlog)}, nil
}

func (s *badgerdb) Close() {
	s.db.Close()
}
