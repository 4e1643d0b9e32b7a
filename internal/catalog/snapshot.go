// Package catalog loads a product-id snapshot into a bloom filter for cheap
// stale-line detection before order registration. Snapshots are gzipped
// JSONL exports of live product ids from the marketplace backend.
//
// A bloom filter only gives definite negatives: an id that tests false is
// certainly absent from the snapshot, so the line is stale; an id that tests
// true may still have been deleted since the export, and the backend remains
// the authority at Prepare time.
package catalog

import (
	"bufio"
	"context"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const defaultFPR = 0.001

// Snapshot is an immutable product-id membership filter.
type Snapshot struct {
	filter *bloom.BloomFilter
	count  uint64
}

// Load reads every snapshot file concurrently and merges the ids into one
// filter sized for the given capacity. Each file is gzipped JSONL, one
// object per line with at least an "id" member.
func Load(ctx context.Context, paths []string, capacity uint) (*Snapshot, error) {
	if len(paths) == 0 {
		return nil, errors.New("no snapshot files given")
	}

	filter := bloom.NewWithEstimates(capacity, defaultFPR)

	var (
		mu    sync.Mutex
		count uint64
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			ids, err := readIDs(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				filter.AddString(id)
			}
			count += uint64(len(ids))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Snapshot{filter: filter, count: count}, nil
}

// MaybeLive reports whether the product id may exist in the snapshot.
// False is definitive: the id was not in the export.
func (s *Snapshot) MaybeLive(productID string) bool {
	return s.filter.TestString(productID)
}

// Count returns how many ids were loaded.
func (s *Snapshot) Count() uint64 {
	return s.count
}

// readIDs decodes one gzipped JSONL file into its product ids.
func readIDs(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	defer gz.Close()

	var ids []string
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		id, err := decodeID(line)
		if err != nil {
			return nil, err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	return ids, nil
}

// decodeID extracts the "id" member from one JSONL object. Ids are exported
// as numbers or strings depending on the backend version; both are accepted.
func decodeID(line []byte) (string, error) {
	var id string
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			id = s
			return nil
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			id = n.String()
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", errors.Wrap(err, "decode line")
	}
	return id, nil
}
