package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/quotation-intake/constants"
	"github.com/joseph-ayodele/quotation-intake/internal/blob"
	"github.com/joseph-ayodele/quotation-intake/internal/entity"
)

const sheet = "Quotations"

var headers = []string{
	"Reference",
	"Work Item",
	"Generated At",
	"Vendor",
	"VAT",
	"Part Number",
	"Full Description",
	"Quantity",
	"Unit Price",
	"Currency",
	"Category",
}

// Service produces XLSX bytes from the grouped payloads under emails/processed/.
type Service struct {
	store  blob.Store
	logger *slog.Logger
}

func NewService(store blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Payloads loads every grouped payload, ordered by reference. Undecodable
// objects are logged and skipped.
func (s *Service) Payloads(ctx context.Context) ([]entity.AggregatedPayload, error) {
	res, err := s.store.List(ctx, constants.GroupedPayloadPrefix, "")
	if err != nil {
		return nil, fmt.Errorf("list grouped payloads: %w", err)
	}
	out := make([]entity.AggregatedPayload, 0, len(res.Objects))
	for _, key := range res.Objects {
		if !constants.IsGroupedPayloadKey(key) {
			continue
		}
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		var p entity.AggregatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Warn("export.payload.decode_error", "key", key, "error", err)
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}

// ExportXLSX returns a workbook with one row per quoted item. from and to
// bound GeneratedAt by date, inclusive; nil means unbounded.
func (s *Service) ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	payloads, err := s.Payloads(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, p := range payloads {
		if !inWindow(p.GeneratedAt, from, to) {
			continue
		}
		for _, q := range p.Quotations {
			vat := ""
			if q.Vendor != nil {
				vat = q.Vendor.VAT
			}
			for _, it := range q.Items {
				values := []any{
					p.Reference,
					p.WorkItemID,
					p.GeneratedAt.UTC().Format(time.RFC3339),
					q.VendorName(),
					vat,
					it.PartNumber,
					truncate(it.FullDescription, 250),
					it.Quantity,
					it.UnitPrice,
					it.Currency,
					it.Category,
				}
				for col, v := range values {
					cell, _ := excelize.CoordinatesToCellName(col+1, row)
					_ = f.SetCellValue(sheet, cell, v)
				}
				row++
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 24)
	_ = f.SetColWidth(sheet, "C", "C", 22)
	_ = f.SetColWidth(sheet, "D", "D", 32)
	_ = f.SetColWidth(sheet, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"payloads", len(payloads),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func inWindow(t time.Time, from, to *time.Time) bool {
	d := dateOf(t)
	if from != nil && d.Before(dateOf(*from)) {
		return false
	}
	if to != nil && d.After(dateOf(*to)) {
		return false
	}
	return true
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
