// Package indexcache is a disposable sqlite-backed memo of the
// (firstOrdinal, count) pair internal/render computes by scanning an
// idx.Index's slot table for each populated day. It never becomes a
// source of truth: every row is keyed to the exact size and mtime of
// the .idx file it was derived from, the same "derived, rebuildable"
// relationship spilldb/webcache/webcache.go's sqlite cache has to the
// fetches it memoizes, and a stale row (index file changed size or
// mtime since) is simply treated as a miss and overwritten.
package indexcache

import (
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

const createSQL = `
CREATE TABLE IF NOT EXISTS DayCounts (
	List         TEXT NOT NULL,
	IndexSize    INTEGER NOT NULL,
	IndexModTime INTEGER NOT NULL,
	ADay         INTEGER NOT NULL,
	FirstOrdinal INTEGER NOT NULL,
	Count        INTEGER NOT NULL,
	PRIMARY KEY (List, ADay)
);
`

// Cache is a pool of connections to the day-count memo database.
type Cache struct {
	pool *sqlitex.Pool
}

// Open creates (if necessary) and opens the cache database at path.
func Open(path string) (*Cache, error) {
	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, err
	}
	if err := sqlitex.ExecScript(conn, createSQL); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Close(); err != nil {
		return nil, err
	}
	pool, err := sqlitex.Open(path, 0, 8)
	if err != nil {
		return nil, err
	}
	return &Cache{pool: pool}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// Lookup returns the memoized (firstOrdinal, count) for aday, scoped
// to a .idx file of exactly indexSize bytes last modified at
// indexModTime (unix seconds). A row from a since-rewritten index
// file does not match and is reported as a miss.
func (c *Cache) Lookup(list string, indexSize, indexModTime int64, aday int) (firstOrdinal, count int32, ok bool, err error) {
	conn := c.pool.Get(nil)
	if conn == nil {
		return 0, 0, false, nil
	}
	defer c.pool.Put(conn)

	stmt := conn.Prep(`SELECT FirstOrdinal, Count FROM DayCounts
		WHERE List = $list AND IndexSize = $size AND IndexModTime = $mtime AND ADay = $aday;`)
	stmt.SetText("$list", list)
	stmt.SetInt64("$size", indexSize)
	stmt.SetInt64("$mtime", indexModTime)
	stmt.SetInt64("$aday", int64(aday))
	defer stmt.Reset()

	hasRow, err := stmt.Step()
	if err != nil {
		return 0, 0, false, err
	}
	if !hasRow {
		return 0, 0, false, nil
	}
	return int32(stmt.GetInt64("FirstOrdinal")), int32(stmt.GetInt64("Count")), true, nil
}

// Store memoizes the (firstOrdinal, count) pair for aday, replacing
// any row for a different index generation.
func (c *Cache) Store(list string, indexSize, indexModTime int64, aday int, firstOrdinal, count int32) error {
	conn := c.pool.Get(nil)
	if conn == nil {
		return nil
	}
	defer c.pool.Put(conn)

	stmt := conn.Prep(`INSERT OR REPLACE INTO DayCounts (
			List, IndexSize, IndexModTime, ADay, FirstOrdinal, Count
		) VALUES ($list, $size, $mtime, $aday, $first, $count);`)
	stmt.SetText("$list", list)
	stmt.SetInt64("$size", indexSize)
	stmt.SetInt64("$mtime", indexModTime)
	stmt.SetInt64("$aday", int64(aday))
	stmt.SetInt64("$first", int64(firstOrdinal))
	stmt.SetInt64("$count", int64(count))
	_, err := stmt.Step()
	return err
}
