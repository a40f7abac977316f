package rentals

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const exportTimeLayout = "2006-01-02 15:04"

// ExportCSV は貸出状況一覧をCSVで書き出す。
// 文字コードはShift_JIS（Windows/Excelでそのまま開ける「ANSI（CP932）」相当）。
func (s *Service) ExportCSV(ctx context.Context, f StatusFilter, out io.Writer) error {
	rows, err := s.store.ListStatuses(ctx, f)
	if err != nil {
		return err
	}
	now := s.clock.Now()

	enc := japanese.ShiftJIS.NewEncoder()
	w := csv.NewWriter(transform.NewWriter(out, enc))

	header := []string{"資産番号", "メーカー", "OS", "設置場所", "状態", "社員番号", "氏名", "貸出日", "返却期限", "期限超過"}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range rows {
		st := buildStatusResponse(&rows[i], now)
		rec := []string{
			st.AssetNo,
			st.Maker,
			strOrEmpty(st.OS),
			strOrEmpty(st.Location),
			statusLabel(st.IsFree),
			strOrEmpty(st.EmployeeNo),
			strOrEmpty(st.EmployeeName),
			timeOrEmpty(st.RentedAt),
			timeOrEmpty(st.DueOn),
			overdueLabel(st.Overdue),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func statusLabel(isFree bool) string {
	if isFree {
		return "空き"
	}
	return "貸出中"
}

func overdueLabel(overdue bool) string {
	if overdue {
		return "超過"
	}
	return ""
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}
