// Package history 提供基于BadgerDB的本地铸造记录存储
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/retromint/v1/core/mint"
	"github.com/retromint/v1/pkg/ux/ui"
)

// Record 一条铸造记录
type Record struct {
	TokenID     string    `json:"token_id"`
	TxHash      string    `json:"tx_hash"`
	Owner       string    `json:"owner"`
	TokenURI    string    `json:"token_uri"`
	ImageCID    string    `json:"image_cid"`
	MetadataCID string    `json:"metadata_cid"`
	MintedAt    time.Time `json:"minted_at"`
}

// Store 铸造记录存储
//
// 键格式: mint/<owner小写>/<minted_at unixnano>，值为JSON编码的Record
type Store struct {
	db     *badgerdb.DB
	logger ui.Logger
}

// Open 打开记录存储
func Open(dir string, logger ui.Logger) (*Store, error) {
	logger = ui.OrNoop(logger)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	opts := badgerdb.DefaultOptions(dir)
	// 客户端本地小库，压低缓存占用
	opts.BlockCacheSize = 8 << 20
	opts.IndexCacheSize = 8 << 20
	opts.NumMemtables = 2
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(owner string, mintedAt time.Time) []byte {
	return []byte(fmt.Sprintf("mint/%s/%020d", strings.ToLower(owner), mintedAt.UnixNano()))
}

// Put 写入一条记录
func (s *Store) Put(record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.Owner == "" {
		return fmt.Errorf("record owner is empty")
	}
	if record.MintedAt.IsZero() {
		record.MintedAt = time.Now().UTC()
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(recordKey(record.Owner, record.MintedAt), value)
	})
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	s.logger.Debugf("history record saved: token %s owner %s", record.TokenID, record.Owner)
	return nil
}

// RecordResult 将铸造结果转换为记录并写入
func (s *Store) RecordResult(result *mint.Result) error {
	if result == nil {
		return fmt.Errorf("result is nil")
	}
	return s.Put(&Record{
		TokenID:     result.TokenID.String(),
		TxHash:      result.TxHash.Hex(),
		Owner:       result.Owner.Hex(),
		TokenURI:    result.TokenURI,
		ImageCID:    result.ImageCID,
		MetadataCID: result.MetadataCID,
		MintedAt:    result.MintedAt,
	})
}

// List 列出指定地址的铸造记录（按时间升序）
//
// owner为空时列出全部记录
func (s *Store) List(owner string) ([]*Record, error) {
	prefix := []byte("mint/")
	if owner != "" {
		prefix = []byte("mint/" + strings.ToLower(owner) + "/")
	}

	var records []*Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var record Record
				if err := json.Unmarshal(value, &record); err != nil {
					// 跳过损坏的记录
					s.logger.Warnf("skip corrupted history record: %v", err)
					return nil
				}
				records = append(records, &record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].MintedAt.Before(records[j].MintedAt)
	})
	return records, nil
}
