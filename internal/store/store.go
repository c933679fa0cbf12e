// Package store persists the raw input of workbook cells in a bbolt file.
//
// layout: a top-level "sheets" bucket holds one bucket per lower-cased sheet
// name. each sheet bucket keeps the display name, a creation sequence for
// tab order, and a "cells" bucket mapping canonical A1 addresses to input.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/workbook"
)

var (
	sheetsBucket = []byte("sheets")
	cellsBucket  = []byte("cells")
	nameKey      = []byte("name")
	seqKey       = []byte("seq")
)

var ErrInvalidAddress = errors.New("invalid cell address")

type Store struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the store file at path
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sheetsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing store %s: %w", path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func canonicalKey(address string) ([]byte, error) {
	row, col, ok := formula.ParseCellAddress(strings.TrimSpace(address))
	if !ok {
		return nil, fmt.Errorf("cell %q: %w", address, ErrInvalidAddress)
	}
	return []byte(formula.CellAddress(row, col)), nil
}

// sheetBucket returns the bucket for sheet, creating it when create is set
func sheetBucket(tx *bbolt.Tx, sheet string, create bool) (*bbolt.Bucket, error) {
	root := tx.Bucket(sheetsBucket)
	key := []byte(strings.ToLower(sheet))
	if bucket := root.Bucket(key); bucket != nil || !create {
		return bucket, nil
	}

	bucket, err := root.CreateBucket(key)
	if err != nil {
		return nil, err
	}
	seq, err := root.NextSequence()
	if err != nil {
		return nil, err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	if err := bucket.Put(seqKey, buf[:]); err != nil {
		return nil, err
	}
	if err := bucket.Put(nameKey, []byte(sheet)); err != nil {
		return nil, err
	}
	_, err = bucket.CreateBucket(cellsBucket)
	return bucket, err
}

// Put records the raw input of a cell. empty input deletes the cell.
func (s *Store) Put(sheet, address, input string) error {
	if input == "" {
		return s.Delete(sheet, address)
	}
	key, err := canonicalKey(address)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sheetBucket(tx, sheet, true)
		if err != nil {
			return err
		}
		return bucket.Bucket(cellsBucket).Put(key, []byte(input))
	})
}

// Delete forgets a cell. deleting from an unknown sheet is not an error.
func (s *Store) Delete(sheet, address string) error {
	key, err := canonicalKey(address)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sheetBucket(tx, sheet, false)
		if err != nil || bucket == nil {
			return err
		}
		return bucket.Bucket(cellsBucket).Delete(key)
	})
}

// DeleteSheet forgets a sheet and all its cells
func (s *Store) DeleteSheet(sheet string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(sheetsBucket).DeleteBucket([]byte(strings.ToLower(sheet)))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// SaveSheet replaces the stored cells of sheet with its current contents in
// wb. structural edits move cells, so they are persisted this way.
func (s *Store) SaveSheet(wb *workbook.Workbook, sheet string) error {
	ws, ok := wb.Sheet(sheet)
	if !ok {
		return workbook.NewApplicationError(workbook.NotFound, fmt.Sprintf("sheet %s not found", sheet))
	}
	cells := ws.Cells()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := sheetBucket(tx, ws.Name(), true)
		if err != nil {
			return err
		}
		if err := bucket.Put(nameKey, []byte(ws.Name())); err != nil {
			return err
		}
		if err := bucket.DeleteBucket(cellsBucket); err != nil {
			return err
		}
		stored, err := bucket.CreateBucket(cellsBucket)
		if err != nil {
			return err
		}
		for _, cell := range cells {
			if err := stored.Put([]byte(cell.Address()), []byte(cell.Input)); err != nil {
				return err
			}
		}
		return nil
	})
}

type storedSheet struct {
	name  string
	seq   uint64
	cells [][2]string
}

// Restore replays every stored sheet and cell into wb, adding sheets in the
// order they were first stored
func (s *Store) Restore(wb *workbook.Workbook) error {
	var sheets []storedSheet
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(sheetsBucket)
		return root.ForEach(func(k, v []byte) error {
			bucket := root.Bucket(k)
			if v != nil || bucket == nil {
				return nil
			}
			sheet := storedSheet{name: string(bucket.Get(nameKey))}
			if seq := bucket.Get(seqKey); len(seq) == 8 {
				sheet.seq = binary.BigEndian.Uint64(seq)
			}
			c := bucket.Bucket(cellsBucket).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				sheet.cells = append(sheet.cells, [2]string{string(k), string(v)})
			}
			sheets = append(sheets, sheet)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("reading store: %w", err)
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].seq < sheets[j].seq })

	cells := 0
	for _, sheet := range sheets {
		if _, exists := wb.Sheet(sheet.name); !exists {
			if _, err := wb.AddSheet(sheet.name); err != nil {
				return fmt.Errorf("restoring sheet %s: %w", sheet.name, err)
			}
		}
		for _, cell := range sheet.cells {
			if err := wb.Set(sheet.name, cell[0], cell[1]); err != nil {
				return fmt.Errorf("restoring %s!%s: %w", sheet.name, cell[0], err)
			}
			cells++
		}
	}
	s.logger.Info("store restored", zap.Int("sheets", len(sheets)), zap.Int("cells", cells))
	return nil
}
