package service

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"blackcat/internal/domains/story/model"
	"blackcat/internal/domains/story/notification"
	"blackcat/internal/shared/utils"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	storySheet   = "Story"
	writersSheet = "Writers"
)

// buildWorkbook renders a story as an xlsx file: one row per snippet, in order
func buildWorkbook(story *model.Story, writers []model.WriterInfo, snippets []model.SnippetWithAuthor) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", storySheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetCellValue(storySheet, "A1", notification.TitleCase(story.Title)); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(storySheet, "A3", &[]interface{}{"#", "Author", "Text", "Edited"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(storySheet, "A1", "D3", bold); err != nil {
		return nil, err
	}

	for i, s := range snippets {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return nil, err
		}
		author := s.AuthorUsername
		if author == "" {
			author = "[deleted]"
		}
		row := []interface{}{i + 1, author, s.Text, s.Edited}
		if err := f.SetSheetRow(storySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(storySheet, "C", "C", 80); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(writersSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(writersSheet, "A1", &[]interface{}{"Writer", "Active"}); err != nil {
		return nil, err
	}
	for i, w := range writers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(writersSheet, cell, &[]interface{}{w.Username, w.Active}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// exportFilename is the attachment name offered to browsers
func exportFilename(story *model.Story) string {
	slug := utils.GenerateSlug(story.Title)
	if slug == "" {
		slug = "story"
	}
	return slug + ".xlsx"
}

func archiveKey(story *model.Story) string {
	return fmt.Sprintf("archive/stories/%s.xlsx", story.ID)
}
