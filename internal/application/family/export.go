package family

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KinKeep/pkg/errors"
)

// ExportFormat selects the encoding of an export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)

// ParseExportFormat accepts json and xlsx (or excel). Empty means json.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return ExportJSON, nil
	case "xlsx", "excel":
		return ExportXLSX, nil
	}
	return "", errors.InvalidParam("export format must be json or xlsx").WithDetail(s)
}

const (
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Export is an encoded copy of the whole family record.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
	Members     int
}

// PublishedExport is an export stored in the export sink.
type PublishedExport struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Members  int    `json:"members"`
}

var exportHeader = []string{
	"ID", "First Name", "Last Name", "Maiden Name", "Gender", "Birth Date", "Death Date", "Lifespan",
	"Father", "Father Relationship", "Mother", "Mother Relationship", "Spouse", "Marriage Date",
	"Memories", "Bio", "Created At",
}

var memoryHeader = []string{"Member ID", "Member", "Memory ID", "Type", "Title", "Date", "Content"}

const (
	membersSheet  = "Members"
	memoriesSheet = "Memories"
)

func (s *serviceImpl) Export(ctx context.Context, format ExportFormat) (*Export, error) {
	if format == "" {
		format = ExportJSON
	}
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format {
	case ExportJSON:
		doc := member.Document{Members: all}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode export")
		}
		return &Export{
			Filename:    "kinkeep-" + stamp + ".json",
			ContentType: contentTypeJSON,
			Data:        data,
			Members:     len(all),
		}, nil
	case ExportXLSX:
		data, err := workbook(all)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to build spreadsheet")
		}
		return &Export{
			Filename:    "kinkeep-" + stamp + ".xlsx",
			ContentType: contentTypeXLSX,
			Data:        data,
			Members:     len(all),
		}, nil
	}
	return nil, errors.InvalidParam("export format must be json or xlsx").WithDetail(string(format))
}

func (s *serviceImpl) PublishExport(ctx context.Context, format ExportFormat) (*PublishedExport, error) {
	if s.sink == nil {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "export storage is not configured")
	}
	exp, err := s.Export(ctx, format)
	if err != nil {
		return nil, err
	}
	url, err := s.sink.Upload(ctx, exp.Filename, exp.Data, exp.ContentType)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to upload export")
	}
	s.logger.Info("export published", logging.String("filename", exp.Filename), logging.Int("members", exp.Members))
	return &PublishedExport{Filename: exp.Filename, URL: url, Members: exp.Members}, nil
}

// workbook renders members as a two-sheet spreadsheet. Photos and media
// memory content are left out; only their presence is noted.
func workbook(all []member.Member) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(membersSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if _, err := f.NewSheet(memoriesSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	for sheet, header := range map[string][]string{membersSheet: exportHeader, memoriesSheet: memoryHeader} {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	names := make(map[string]string, len(all))
	for i := range all {
		names[all[i].ID] = all[i].FullName()
	}

	memRow := 2
	for i := range all {
		m := &all[i]
		row := []interface{}{
			m.ID, m.FirstName, m.LastName, m.MaidenName, string(m.Gender), m.BirthDate, m.DeathDate,
			member.Lifespan(m),
			names[m.FatherID], string(m.FatherKind), names[m.MotherID], string(m.MotherKind),
			names[m.SpouseID], m.MarriageDate,
			len(m.Memories), m.Bio,
			time.UnixMilli(m.CreatedAt).UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(membersSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write member %s: %w", m.ID, err)
		}

		for _, mem := range m.Memories {
			content := mem.Content
			if mem.Kind != member.MemoryText {
				content = "(" + string(mem.Kind) + ")"
			}
			memCells := []interface{}{m.ID, m.FullName(), mem.ID, string(mem.Kind), mem.Title, mem.Date, content}
			cell, _ := excelize.CoordinatesToCellName(1, memRow)
			if err := f.SetSheetRow(memoriesSheet, cell, &memCells); err != nil {
				return nil, fmt.Errorf("failed to write memory %s: %w", mem.ID, err)
			}
			memRow++
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
