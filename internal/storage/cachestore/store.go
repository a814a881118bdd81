// Package cachestore persists similarity textures in BadgerDB so that
// repeated sessions on the same mesh skip the cache build.
package cachestore

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/logger"
	"github.com/Faultbox/texsynth/pkg/grid"
)

const keyPrefix = "similarity/"

// Store is a BadgerDB-backed grid store. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) a store in dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache store path is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir))
}

// InMemory opens a store that is discarded on Close.
func InMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the grid stored under key. ok is false when absent.
func (s *Store) Load(key string) (*grid.Grid, bool, error) {
	var g *grid.Grid
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			g, derr = decode(val)
			return derr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", key, err)
	}
	return g, true, nil
}

// Save stores g under key, replacing any previous value.
func (s *Store) Save(key string, g *grid.Grid) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), encode(g))
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// encode lays out width, height as uint32 followed by little-endian
// float32 cells.
func encode(g *grid.Grid) []byte {
	buf := make([]byte, 8+4*len(g.Pix))
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.W))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.H))
	for i, p := range g.Pix {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(p))
	}
	return buf
}

func decode(buf []byte) (*grid.Grid, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("cache value too short: %d bytes", len(buf))
	}
	w := int(binary.LittleEndian.Uint32(buf[0:]))
	h := int(binary.LittleEndian.Uint32(buf[4:]))
	if len(buf) != 8+4*w*h {
		return nil, fmt.Errorf("cache value holds %d bytes, want %d for %dx%d", len(buf), 8+4*w*h, w, h)
	}
	g := grid.New(w, h)
	for i := range g.Pix {
		g.Pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[8+4*i:]))
	}
	return g, nil
}

// Key identifies a similarity texture by everything it depends on.
func Key(meshDigest string, faceUVs [][3]int, vp camera.Viewpoint, hit, uvSize, projectionSize int) string {
	h := sha256.New()
	buf := make([]byte, 4)
	putU := func(v uint32) {
		binary.LittleEndian.PutUint32(buf, v)
		h.Write(buf)
	}
	h.Write([]byte(meshDigest))
	putU(uint32(len(faceUVs)))
	for _, f := range faceUVs {
		putU(uint32(f[0]))
		putU(uint32(f[1]))
		putU(uint32(f[2]))
	}
	putU(math.Float32bits(vp.Dist))
	putU(math.Float32bits(vp.Elev))
	putU(math.Float32bits(vp.Azim))
	putU(uint32(hit))
	putU(uint32(uvSize))
	putU(uint32(projectionSize))
	return hex.EncodeToString(h.Sum(nil))
}

// badgerLogger routes badger's own logging into the debug level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Sugar.Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Sugar.Warnf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Sugar.Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Sugar.Debugf("badger: "+format, args...)
}
