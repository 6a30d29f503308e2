package history

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retromint/v1/core/mint"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutAndList(t *testing.T) {
	store := newTestStore(t)

	owner := "0x1111111111111111111111111111111111111111"
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(&Record{
			TokenID:  big.NewInt(int64(i)).String(),
			TxHash:   common.HexToHash("0xabcd").Hex(),
			Owner:    owner,
			MintedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := store.List(owner)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// 按时间升序
	for i, record := range records {
		assert.Equal(t, big.NewInt(int64(i)).String(), record.TokenID)
	}
}

func TestStore_ListFiltersByOwner(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put(&Record{TokenID: "1", Owner: "0xAAAA000000000000000000000000000000000001"}))
	require.NoError(t, store.Put(&Record{TokenID: "2", Owner: "0xBBBB000000000000000000000000000000000002"}))

	// 大小写不敏感
	records, err := store.List("0xaaaa000000000000000000000000000000000001")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].TokenID)

	// 为空时列出全部
	all, err := store.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_PutValidation(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.Put(nil))
	assert.Error(t, store.Put(&Record{TokenID: "1"}))
}

func TestStore_RecordResult(t *testing.T) {
	store := newTestStore(t)

	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	result := &mint.Result{
		TokenID:     big.NewInt(42),
		TxHash:      common.HexToHash("0xabcd"),
		TokenURI:    "ipfs://QmMetaCid",
		ImageCID:    "QmImageCid",
		MetadataCID: "QmMetaCid",
		Owner:       owner,
		MintedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.RecordResult(result))
	assert.Error(t, store.RecordResult(nil))

	records, err := store.List(owner.Hex())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].TokenID)
	assert.Equal(t, "ipfs://QmMetaCid", records[0].TokenURI)
	assert.Equal(t, owner.Hex(), records[0].Owner)
}
