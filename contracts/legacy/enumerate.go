package legacy

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// accountsAfter returns at most limit holders following after in ascending
// byte order of their script hashes.
//
// Storage has no seek primitive, so the holders following after are
// collected level by level: for k from the last byte down to the first one
// the bucket of keys sharing after[:k] is scanned for holders whose k-th
// byte exceeds after[k]. Buckets at deeper levels precede the shallower
// ones in key order, so the result stays sorted. A bucket that starts with
// too many holders to skip is split into sub-buckets by the next byte.
func accountsAfter(ctx storage.Context, after interop.Hash160, limit int) []interop.Hash160 {
	limit = normalizeLimit(limit)
	res := []interop.Hash160{}

	if len(after) == 0 {
		return collectBucket(ctx, []byte{accPrefix}, res, limit)
	}

	for k := interop.Hash160Len - 1; k >= 0 && len(res) < limit; k-- {
		prefix := append([]byte{accPrefix}, after[:k]...)
		res = collectLevel(ctx, prefix, k, int(after[k]), res, limit)
	}

	return res
}

// collectLevel appends holders with the prefix whose k-th byte is greater
// than pivot.
func collectLevel(ctx storage.Context, prefix []byte, k int, pivot int, res []interop.Hash160, limit int) []interop.Hash160 {
	var (
		skipped int
		pos     = k + 1 // key byte index, the first one is accPrefix
	)

	it := storage.Find(ctx, prefix, storage.KeysOnly)
	for len(res) < limit && iterator.Next(it) {
		key := iterator.Value(it).([]byte)
		if int(key[pos]) > pivot {
			res = append(res, interop.Hash160(key[1:]))
			continue
		}

		skipped++
		if skipped > maxLevelSkip {
			return collectSubBuckets(ctx, prefix, pivot, res, limit)
		}
	}

	return res
}

// collectSubBuckets appends holders from prefix+b buckets for every b after
// pivot in order.
func collectSubBuckets(ctx storage.Context, prefix []byte, pivot int, res []interop.Hash160, limit int) []interop.Hash160 {
	for b := pivot + 1; b < 256 && len(res) < limit; b++ {
		res = collectBucket(ctx, append(prefix, []byte{byte(b)}...), res, limit)
	}
	return res
}

func collectBucket(ctx storage.Context, prefix []byte, res []interop.Hash160, limit int) []interop.Hash160 {
	it := storage.Find(ctx, prefix, storage.KeysOnly)
	for len(res) < limit && iterator.Next(it) {
		key := iterator.Value(it).([]byte)
		res = append(res, interop.Hash160(key[1:]))
	}
	return res
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
