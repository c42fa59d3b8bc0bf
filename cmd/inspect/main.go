package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Offline dump of the gateway store. Run it against a stopped instance or a
// copy of the data directory; the lock guard is bypassed on purpose.
func main() {
	dbPath := flag.String("db", "/tmp/piratesocial", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, room:, member:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				kind, at, detail := describe(rawKey, v)
				table.Append([]string{rawKey, kind, at, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe decodes the JSON value according to the key's prefix. Unknown or
// corrupt entries are reported inline instead of aborting the scan.
func describe(key string, value []byte) (kind, at, detail string) {
	var record map[string]any
	if err := json.Unmarshal(value, &record); err != nil {
		return "?", "", fmt.Sprintf("unreadable value: %v", err)
	}

	switch {
	case strings.HasPrefix(key, "msg:"):
		return "MESSAGE", formatUnixNano(record["at"]),
			fmt.Sprintf("room %v, sender %v: %s", record["room"], record["sender_id"], clip(record["content"]))
	case strings.HasPrefix(key, "room:"):
		return "ROOM", formatUnix(record["created_at"]),
			fmt.Sprintf("%v (%v)", record["id"], record["name"])
	case strings.HasPrefix(key, "member:"):
		// room and user ids live in the key itself.
		return "MEMBER", formatUnix(record["joined_at"]), key[len("member:"):]
	case strings.HasPrefix(key, "user:"):
		return "USER", formatUnix(record["first_seen"]),
			fmt.Sprintf("%v <%v>", record["id"], record["email"])
	default:
		return "?", "", clip(string(value))
	}
}

func formatUnix(v any) string {
	sec, ok := v.(float64)
	if !ok {
		return ""
	}
	return time.Unix(int64(sec), 0).UTC().Format("2006-01-02 15:04:05")
}

func formatUnixNano(v any) string {
	nano, ok := v.(float64)
	if !ok {
		return ""
	}
	return time.Unix(0, int64(nano)).UTC().Format("2006-01-02 15:04:05")
}

func clip(v any) string {
	s, _ := v.(string)
	if len(s) > 48 {
		return s[:48] + "..."
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return db, nil
}
