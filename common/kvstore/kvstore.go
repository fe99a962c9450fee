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
	"context"
	"errors"
)

const (
	defaultCF = "default"

	RocksdbLsmKVType = LsmKVType("rocksdb")
	BadgerLsmKVType  = LsmKVType("badger")

	FIFOStyle      = CompactionStyle("fifo")
	LevelStyle     = CompactionStyle("level")
	UniversalStyle = CompactionStyle("universal")
)

var (
	ErrNotFound          = errors.New("key not found")
	ErrKVTypeNotFound    = errors.New("kv type not found")
	ErrColumnNotExist    = errors.New("column family not exist")
	ErrEngineNotCompiled = errors.New("kv engine not compiled in")
)

type (
	CF              string
	LsmKVType       string
	CompactionStyle string

	// Store is an ordered key-value store partitioned into column families.
	// Keys within a column family are iterated in byte order.
	Store interface {
		CreateColumn(col CF) error
		GetAllColumns() []CF
		CheckColumns(col CF) bool
		GetRaw(ctx context.Context, col CF, key []byte) (value []byte, err error)
		SetRaw(ctx context.Context, col CF, key []byte, value []byte) error
		Delete(ctx context.Context, col CF, key []byte) error
		// List iterates keys with the given prefix, starting at marker when
		// it is set.
		List(ctx context.Context, col CF, prefix []byte, marker []byte) ListReader
		NewWriteBatch() WriteBatch
		// Write applies every operation of the batch atomically.
		Write(ctx context.Context, batch WriteBatch) error
		Stats(ctx context.Context) (Stats, error)
		Close()
	}
	ListReader interface {
		// ReadNextCopy returns nil key and value at the end of the range.
		ReadNextCopy() (key []byte, value []byte, err error)
		Close()
	}
	WriteBatch interface {
		Put(col CF, key, value []byte)
		Delete(col CF, key []byte)
		Count() int
		Close()
	}

	Stats struct {
		Used        uint64      `json:"used"`
		MemoryUsage MemoryUsage `json:"memory_usage"`
	}
	MemoryUsage struct {
		BlockCacheUsage     uint64 `json:"block_cache_usage"`
		IndexAndFilterUsage uint64 `json:"index_and_filter_usage"`
		MemtableUsage       uint64 `json:"memtable_usage"`
		Total               uint64 `json:"total"`
	}
	Option struct {
		Sync                        bool            `json:"sync"`
		ColumnFamily                []CF            `json:"column_family"`
		CreateIfMissing             bool            `json:"create_if_missing"`
		InMemory                    bool            `json:"in_memory"`
		BlockSize                   int             `json:"block_size"`
		BlockCache                  uint64          `json:"block_cache"`
		EnablePipelinedWrite        bool            `json:"enable_pipelined_write"`
		MaxBackgroundCompactions    int             `json:"max_background_compactions"`
		MaxBackgroundFlushes        int             `json:"max_background_flushes"`
		MaxOpenFiles                int             `json:"max_open_files"`
		MaxWriteBufferNumber        int             `json:"max_write_buffer_number"`
		WriteBufferSize             int             `json:"write_buffer_size"`
		TargetFileSizeBase          uint64          `json:"target_file_size_base"`
		KeepLogFileNum              int             `json:"keep_log_file_num"`
		MaxLogFileSize              int             `json:"max_log_file_size"`
		Level0SlowdownWritesTrigger int             `json:"level0_slowdown_writes_trigger"`
		Level0StopWritesTrigger     int             `json:"level0_stop_writes_trigger"`
		CompactionStyle             CompactionStyle `json:"compaction_style"`
	}
)

func NewKVStore(ctx context.Context, path string, lsmType LsmKVType, option *Option) (Store, error) {
	if option == nil {
		option = &Option{CreateIfMissing: true}
	}
	switch lsmType {
	case RocksdbLsmKVType:
		return newRocksdb(ctx, path, option)
	case BadgerLsmKVType:
		return newBadger(ctx, path, option)
	default:
		return nil, ErrKVTypeNotFound
	}
}

func (cf CF) String() string {
	return string(cf)
}

// errListReader reports a failure that happened before iteration started.
type errListReader struct {
	err error
}

func (r errListReader) ReadNextCopy() ([]byte, []byte, error) { return nil, nil, r.err }

func (r errListReader) Close() {}
