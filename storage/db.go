package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	ethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// The ledger uses it for both raw metadata (head root, slot) and, through
// TrieDB, for the state trie nodes.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close() // A way to gracefully shut down the database connection.
}

// kvBackend shares the trie database wiring between the in-memory and
// persistent stores.
type kvBackend struct {
	kv ethdb.KeyValueStore

	once   sync.Once
	trieDB *triedb.Database
}

func (b *kvBackend) Put(key []byte, value []byte) error {
	return b.kv.Put(key, value)
}

func (b *kvBackend) Get(key []byte) ([]byte, error) {
	ok, err := b.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b.kv.Get(key)
}

func (b *kvBackend) Has(key []byte) (bool, error) {
	return b.kv.Has(key)
}

func (b *kvBackend) Delete(key []byte) error {
	return b.kv.Delete(key)
}

// TrieDB lazily wraps the key-value store in a hash-scheme trie database.
func (b *kvBackend) TrieDB() *triedb.Database {
	b.once.Do(func() {
		b.trieDB = triedb.NewDatabase(rawdb.NewDatabase(b.kv), triedb.HashDefaults)
	})
	return b.trieDB
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kvBackend
}

func NewMemDB() *MemDB {
	return &MemDB{kvBackend{kv: memorydb.New()}}
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB (for mainnet) ---

// LevelDBOptions tunes the persistent store.
type LevelDBOptions struct {
	CacheMB  int
	Handles  int
	ReadOnly bool
}

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kvBackend
	db *ethleveldb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	return OpenLevelDB(path, LevelDBOptions{})
}

// OpenLevelDB opens a LevelDB database with explicit tuning.
func OpenLevelDB(path string, opts LevelDBOptions) (*LevelDB, error) {
	db, err := ethleveldb.NewCustom(path, "ledgerprograms/db/", func(o *opt.Options) {
		if opts.CacheMB > 0 {
			o.BlockCacheCapacity = opts.CacheMB / 2 * opt.MiB
			o.WriteBuffer = opts.CacheMB / 4 * opt.MiB
		}
		if opts.Handles > 0 {
			o.OpenFilesCacheCapacity = opts.Handles
		}
		o.ReadOnly = opts.ReadOnly
	})
	if err != nil {
		return nil, err
	}
	return &LevelDB{kvBackend: kvBackend{kv: db}, db: db}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	if ldb.trieDB != nil {
		ldb.trieDB.Close()
	}
	ldb.db.Close()
}
