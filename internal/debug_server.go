package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

const defaultPrefix = "msg:"

// InspectRow is one line of the badger inspector.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

// StatsProvider returns the figures printed above the inspected rows.
type StatsProvider func() map[string]any

// StartDebugServer exposes the content of badger on /inspect?prefix=...
// The server stops when ctx is cancelled.
func StartDebugServer(ctx context.Context, log *slog.Logger, db *badger.DB, port int, mapper RowMapper, stats StatsProvider) *http.Server {
	if mapper == nil {
		mapper = DefaultMapper
	}
	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           InspectHandler(db, mapper, stats),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server
}

func InspectHandler(db *badger.DB, mapper RowMapper, stats StatsProvider) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}

		var rows []InspectRow
		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				err := item.Value(func(val []byte) error {
					rows = append(rows, mapper(string(item.Key()), val))
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if stats != nil {
			for k, v := range stats() {
				fmt.Fprintf(w, "%s: %v\n", k, v)
			}
			fmt.Fprintln(w)
		}
		RenderRows(w, rows)
	})
	return mux
}

// RenderRows prints the rows as a borderless table.
func RenderRows(w io.Writer, rows []InspectRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
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
	for _, row := range rows {
		table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, row.Detail})
	}
	table.Render()
}

func DefaultMapper(key string, val []byte) InspectRow {
	return InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    fmt.Sprintf("Size: %d bytes", len(val)),
	}
}
