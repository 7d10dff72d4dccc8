package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"courier/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Offline inspector for a courier store. Opens the database read-only
// and prints decoded rows for a key prefix:
//
//	go run ./tools -db /tmp/courier -prefix dm:
//	go run ./tools -db /tmp/courier -prefix user:
func main() {
	dbPath := flag.String("db", "/tmp/courier", "Path to badger DB")
	prefix := flag.String("prefix", "dm:", "Prefix to scan (dm:, inbox:, user:, seq:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "ID", "From", "To", "At", "Detail"})
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
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				table.Append(decodeRow(key, v))
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

// decodeRow renders one entry per key namespace. Unknown namespaces
// fall back to a raw size row so a scan never aborts on one bad key.
func decodeRow(key string, val []byte) []string {
	switch {
	case strings.HasPrefix(key, "dm:"):
		var msg repositories.DiskMessage
		if err := json.Unmarshal(val, &msg); err != nil {
			return rawRow(key, val)
		}
		return []string{
			key, "MESSAGE",
			fmt.Sprintf("%d", msg.ID),
			shorten(msg.SenderID), shorten(msg.ReceiverID),
			msg.At.Format("15:04:05"),
			msg.Content,
		}

	case strings.HasPrefix(key, "inbox:"):
		return []string{key, "INDEX", "-", "-", "-", "-", "-> " + string(val)}

	case strings.HasPrefix(key, "user:"), strings.HasPrefix(key, "userid:"):
		var user repositories.User
		if err := json.Unmarshal(val, &user); err != nil {
			return rawRow(key, val)
		}
		return []string{
			key, "USER",
			shorten(user.ID), "-", "-",
			user.CreatedAt.Format("15:04:05"),
			fmt.Sprintf("%s <%s>", user.DisplayLabel, user.Email),
		}

	case key == "seq:message" && len(val) == 8:
		return []string{
			key, "SEQUENCE",
			fmt.Sprintf("%d", binary.BigEndian.Uint64(val)),
			"-", "-", "-", "last assigned message id",
		}
	}
	return rawRow(key, val)
}

func rawRow(key string, val []byte) []string {
	return []string{key, "RAW", "-", "-", "-", "-", fmt.Sprintf("Size: %d bytes", len(val))}
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A dirty shutdown leaves the value log needing a truncate,
		// which read-only mode refuses. Open writable once, close,
		// then retry read-only.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
