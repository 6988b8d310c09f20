package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportCSV writes the cursor's column names and then every row to w,
// chunkSize rows at a time. It returns the number of data rows written.
func ExportCSV(ctx context.Context, cur *Cursor, w io.Writer, chunkSize int) (int64, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(cur.Columns()); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	var total int64
	record := make([]string, len(cur.Columns()))
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		chunk, err := cur.FetchChunk(chunkSize)
		if err != nil {
			return total, err
		}
		if len(chunk) == 0 {
			break
		}
		for _, row := range chunk {
			for i, v := range row {
				record[i] = formatValue(v)
			}
			if err := cw.Write(record); err != nil {
				return total, fmt.Errorf("write row %d: %w", total+1, err)
			}
			total++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return total, fmt.Errorf("flush: %w", err)
		}
	}

	cw.Flush()
	return total, cw.Error()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(val)
	}
}
