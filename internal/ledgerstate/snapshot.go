package ledgerstate

import (
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

// global encoding of binary values.
var _encoding = base64.StdEncoding

type kv struct{ k, v []byte }

// Snapshot is a set of raw storage items of the legacy token contract pulled
// at some height. Snapshot CSV format is:
//
//	contract,<LE hash>,<height>
//	<base64 key>,<base64 value>
//	...
type Snapshot struct {
	Contract util.Uint160
	Height   uint32

	items []kv
}

// Add saves a storage item. It can be passed as a storage iteration callback.
func (x *Snapshot) Add(key, value []byte) error {
	x.items = append(x.items, kv{k: key, v: value})
	return nil
}

// Len returns the number of storage items.
func (x *Snapshot) Len() int {
	return len(x.items)
}

// Iterate passes all storage items into f and breaks on its error.
func (x *Snapshot) Iterate(f func(key, value []byte) error) error {
	for i := range x.items {
		if err := f(x.items[i].k, x.items[i].v); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV encodes the snapshot.
func (x *Snapshot) WriteCSV(w io.Writer) error {
	c := csv.NewWriter(w)

	err := c.Write([]string{"contract", x.Contract.StringLE(), strconv.FormatUint(uint64(x.Height), 10)})
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range x.items {
		err = c.Write([]string{
			_encoding.EncodeToString(x.items[i].k),
			_encoding.EncodeToString(x.items[i].v),
		})
		if err != nil {
			return fmt.Errorf("write storage item as CSV data: %w", err)
		}
	}

	c.Flush()
	if err = c.Error(); err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}
	return nil
}

// ReadCSV decodes the snapshot written by WriteCSV.
func ReadCSV(r io.Reader) (*Snapshot, error) {
	c := csv.NewReader(r)
	c.FieldsPerRecord = -1

	header, err := c.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 3 || header[0] != "contract" {
		return nil, errors.New("invalid snapshot header")
	}

	var res Snapshot

	res.Contract, err = util.Uint160DecodeStringLE(header[1])
	if err != nil {
		return nil, fmt.Errorf("decode contract hash: %w", err)
	}
	h, err := strconv.ParseUint(header[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("decode height: %w", err)
	}
	res.Height = uint32(h)

	for {
		rec, err := c.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &res, nil
			}
			return nil, fmt.Errorf("read next CSV record: %w", err)
		}
		if len(rec) != 2 {
			return nil, fmt.Errorf("storage item record has %d fields", len(rec))
		}

		var item kv
		if item.k, err = _encoding.DecodeString(rec[0]); err != nil {
			return nil, fmt.Errorf("decode storage item key: %w", err)
		}
		if item.v, err = _encoding.DecodeString(rec[1]); err != nil {
			return nil, fmt.Errorf("decode storage item value: %w", err)
		}
		res.items = append(res.items, item)
	}
}
