package blob

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// OpenFromDSN picks a backend by scheme:
//
//	memory://                       in-process map
//	badger:///var/lib/quotes        badger on disk (badger://./data for relative)
//	badger://?in_memory=true        throwaway badger
//	postgres://user:pw@host/db      shared table via lib/pq
func OpenFromDSN(dsn string, logger *slog.Logger) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("blob: empty dsn")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("blob: parse dsn: %w", err)
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	switch scheme {
	case "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	case "badger":
		inMemory, _ := strconv.ParseBool(parsed.Query().Get("in_memory"))
		if inMemory {
			return OpenBadgerStore("", true, logger)
		}
		dir := filepath.Join(parsed.Host, parsed.Path)
		if dir == "" {
			return nil, fmt.Errorf("blob: badger dsn needs a path")
		}
		return OpenBadgerStore(dir, false, logger)
	case "postgres", "postgresql":
		return NewPostgresStore(dsn, logger)
	default:
		return nil, fmt.Errorf("blob: unsupported dsn scheme %q", scheme)
	}
}
