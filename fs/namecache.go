package fs

import (
	"rv6/hashtable"
	"rv6/ustr"
)

// namecacheSize is the bucket count for the path-to-inum cache; sized
// like a small directory-entry working set, not the whole inode table.
const namecacheSize = 64

// namecache_t memoizes full-path to inode-number lookups so a hot path
// (e.g. repeatedly open()'d shell binary) skips the directory-by-
// directory walk namex would otherwise repeat on every call. Entries are
// invalidated explicitly by any operation that changes what a path
// resolves to (link, unlink, rename) — there is no negative caching.
type namecache_t struct {
	ht *hashtable.Hashtable_t
}

func mkNamecache() *namecache_t {
	return &namecache_t{ht: hashtable.MkHash(namecacheSize)}
}

func (nc *namecache_t) lookup(path ustr.Ustr) (int, bool) {
	v, ok := nc.ht.Get(path)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// insert memoizes path -> inum, replacing any prior mapping for path.
func (nc *namecache_t) insert(path ustr.Ustr, inum int) {
	cp := append(ustr.Ustr{}, path...)
	if _, fresh := nc.ht.Set(cp, inum); !fresh {
		nc.ht.Del(cp)
		nc.ht.Set(cp, inum)
	}
}

// invalidate drops any cached mapping for path, ignoring a miss.
func (nc *namecache_t) invalidate(path ustr.Ustr) {
	if _, ok := nc.ht.Get(path); ok {
		nc.ht.Del(path)
	}
}
