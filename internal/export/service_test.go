package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

func putPayload(t *testing.T, store blob.Store, p entity.AggregatedPayload) {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), constants.GroupedPayloadKey(p.Reference), raw))
}

func readRows(t *testing.T, buf []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportXLSX_OneRowPerItem(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore()
	day := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

	putPayload(t, store, entity.AggregatedPayload{
		Reference: "SO2", WorkItemID: "SO2_E2", GeneratedAt: day,
		Quotations: []entity.Quotation{{
			Vendor: &entity.Vendor{Name: "Globex", VAT: "300"},
			Items:  []entity.Item{{PartNumber: "G-1"}, {PartNumber: "G-2"}},
		}},
	})
	putPayload(t, store, entity.AggregatedPayload{
		Reference: "SO1", WorkItemID: "SO1_E1", GeneratedAt: day.AddDate(0, 0, 1),
		Quotations: []entity.Quotation{{
			Vendor: &entity.Vendor{Name: "Acme"},
			Items:  []entity.Item{{PartNumber: "A-1", Quantity: "3", Currency: "SAR"}},
		}},
	})
	require.NoError(t, store.Put(ctx, constants.GroupedPayloadPrefix+"notes.txt", []byte("x")))

	svc := NewService(store, nil)
	buf, err := svc.ExportXLSX(ctx, nil, nil)
	require.NoError(t, err)

	rows := readRows(t, buf)
	require.Len(t, rows, 4)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"SO1", "SO1_E1"}, rows[1][:2])
	assert.Equal(t, "A-1", rows[1][5])
	assert.Equal(t, "SAR", rows[1][9])
	assert.Equal(t, "Globex", rows[2][3])
	assert.Equal(t, "300", rows[2][4])
	assert.Equal(t, "G-2", rows[3][5])

	from := day.AddDate(0, 0, 1)
	buf, err = svc.ExportXLSX(ctx, &from, nil)
	require.NoError(t, err)
	rows = readRows(t, buf)
	require.Len(t, rows, 2)
	assert.Equal(t, "SO1", rows[1][0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
