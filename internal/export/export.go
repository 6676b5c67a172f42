// Package export renders attendance and member lists as xlsx workbooks for
// the admin panel download buttons. Stored base64 photos are embedded as
// inline images in the first column.
package export

import (
	"encoding/base64"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	// Decoder registration: excelize sizes embedded pictures via image.DecodeConfig.
	_ "image/jpeg"
	_ "image/png"

	"github.com/xuri/excelize/v2"

	"gymkiosk/internal/attendance"
	"gymkiosk/internal/member"
)

// Exporter builds workbooks. Times are rendered in the club timezone.
type Exporter struct {
	loc *time.Location
}

// New creates an exporter pinned to the club timezone.
func New(loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{loc: loc}
}

// Attendance renders the ledger rows, one per check-in, newest first as given.
func (e *Exporter) Attendance(records []attendance.Record) (*excelize.File, error) {
	const sheet = "Attendance"
	f, err := newSheet(sheet, []string{"Photo", "Number", "Name", "Date", "Time", "Kind", "Phone", "Notes"}, "4472C4")
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := i + 2
		m := rec.Member

		number, phone, notes := "", "", ""
		name := deref(rec.Name)
		kind := rec.Kind
		photo := deref(rec.Photo)
		if m != nil {
			number = m.DisplayNumber
			name = m.Name
			kind = m.Kind
			phone = deref(m.Phone)
			notes = deref(m.Notes)
			if photo == "" {
				photo = deref(m.Photo)
			}
		}

		setRow(f, sheet, row, []any{
			"", number, name, rec.Date,
			rec.Timestamp.In(e.loc).Format("15:04"),
			kind, phone, notes,
		})
		embedPhoto(f, sheet, row, photo)
	}

	return f, nil
}

// Members renders the directory roster.
func (e *Exporter) Members(members []member.Member) (*excelize.File, error) {
	const sheet = "Members"
	f, err := newSheet(sheet, []string{"Photo", "Number", "Name", "Birth Date", "Age", "Phone", "Emergency Phone", "Notes", "Kind", "Registered"}, "70AD47")
	if err != nil {
		return nil, err
	}

	for i, m := range members {
		row := i + 2
		age := ""
		if m.Age != nil {
			age = fmt.Sprintf("%d", *m.Age)
		}
		setRow(f, sheet, row, []any{
			"", m.DisplayNumber, m.Name, deref(m.BirthDate), age,
			deref(m.Phone), deref(m.EmergencyPhone), deref(m.Notes),
			m.Kind, m.RegisteredAt.In(e.loc).Format("2006-01-02"),
		})
		embedPhoto(f, sheet, row, deref(m.Photo))
	}

	return f, nil
}

func newSheet(name string, headers []string, headerFill string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return nil, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(name, "A1", last, style); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(name, "A", "A", 12)
	_ = f.SetColWidth(name, "B", string(rune('A'+len(headers)-1)), 16)
	_ = f.SetColWidth(name, "C", "C", 30)
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

var dataURLRe = regexp.MustCompile(`^data:image/(png|jpeg|jpg);base64,`)

func embedPhoto(f *excelize.File, sheet string, row int, photo string) {
	data, ext := decodePhoto(photo)
	if data == nil {
		return
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetRowHeight(sheet, row, 48)
	err := f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ext,
		File:      data,
		Format:    &excelize.GraphicOptions{AutoFit: true},
	})
	if err != nil {
		// A corrupt photo loses its thumbnail, not the whole workbook.
		log.Printf("export: embed photo at %s row %d: %v", sheet, row, err)
	}
}

// decodePhoto accepts a bare base64 string or a data URL and returns raw
// bytes plus the image extension, or nil when undecodable.
func decodePhoto(photo string) ([]byte, string) {
	photo = strings.TrimSpace(photo)
	if photo == "" {
		return nil, ""
	}
	ext := ".jpeg"
	if m := dataURLRe.FindStringSubmatch(photo); m != nil {
		if strings.EqualFold(m[1], "png") {
			ext = ".png"
		}
		photo = photo[len(m[0]):]
	}
	data, err := base64.StdEncoding.DecodeString(photo)
	if err != nil {
		return nil, ""
	}
	return data, ext
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
