// reader.go
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// SheetData 工作表的原始内容，表头行和数据行分开保存
type SheetData struct {
	Name    string
	Headers [][]string // 表头行，成绩册为两行
	Rows    [][]string // 数据行，每行长度与列数一致
}

// Width 列数
func (s *SheetData) Width() int {
	if len(s.Headers) > 0 {
		return len(s.Headers[0])
	}
	if len(s.Rows) > 0 {
		return len(s.Rows[0])
	}
	return 0
}

// ReadXLSXToDataFrame 读取单行表头的工作表
func ReadXLSXToDataFrame(filePath, sheetName string) (dataframe.DataFrame, error) {
	sd, err := ReadSheet(filePath, sheetName, 1)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	return sd.ToDataFrame(sd.Headers[0])
}

// ReadSheet 使用tealeg/xlsx打开Excel文件，前headerRows行作为表头
func ReadSheet(filePath, sheetName string, headerRows int) (*SheetData, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		if _, statErr := os.Stat(filePath); statErr != nil {
			return nil, fmt.Errorf("failed to open xlsx file %s: %w", filePath, statErr)
		}
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", filePath, err)
	}

	sd, err := readWorkbook(xlFile, sheetName, headerRows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filePath), err)
	}
	return sd, nil
}

// ReadSheetBytes 从内存中的xlsx数据读取，用于邮件附件
func ReadSheetBytes(data []byte, sheetName string, headerRows int) (*SheetData, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("xlsx open binary false: %w", err)
	}
	return readWorkbook(xlFile, sheetName, headerRows)
}

func readWorkbook(xlFile *xlsx.File, sheetName string, headerRows int) (*SheetData, error) {
	// 1. 选择工作表，名称为空时取第一个
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("excel文件中没有工作表")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return nil, fmt.Errorf("工作表 %q 不存在", sheetName)
		}
		sheet = s
	}

	// 2. 转换为字符串表格
	return convertSheet(sheet, headerRows)
}

// convertSheet 将xlsx.Sheet转换为SheetData
func convertSheet(sheet *xlsx.Sheet, headerRows int) (*SheetData, error) {
	if headerRows < 1 {
		return nil, fmt.Errorf("表头行数必须大于0")
	}

	var records [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			records = append(records, nil)
			continue
		}
		record := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			if cell != nil {
				record[i] = cell.Value
			}
		}
		records = append(records, record)
	}

	// 去掉末尾的空行
	for len(records) > 0 && isBlankRecord(records[len(records)-1]) {
		records = records[:len(records)-1]
	}

	if len(records) < headerRows {
		return nil, fmt.Errorf("工作表 %s 只有 %d 行，少于表头行数 %d", sheet.Name, len(records), headerRows)
	}

	width := recordWidth(records)
	for i := range records {
		records[i] = padRecord(records[i], width)
	}

	return &SheetData{
		Name:    sheet.Name,
		Headers: records[:headerRows],
		Rows:    records[headerRows:],
	}, nil
}

// ToDataFrame 用给定列名把数据行转换为dataframe.DataFrame，所有列按字符串读取
func (s *SheetData) ToDataFrame(names []string) (dataframe.DataFrame, error) {
	width := s.Width()
	if len(names) != width {
		return dataframe.DataFrame{}, fmt.Errorf("列名数量 %d 与列数 %d 不一致", len(names), width)
	}

	columns := make([][]string, width)
	for i := range columns {
		columns[i] = make([]string, 0, len(s.Rows))
	}
	for _, row := range s.Rows {
		for i := 0; i < width; i++ {
			columns[i] = append(columns[i], row[i])
		}
	}

	seriesList := make([]series.Series, width)
	for i, colName := range names {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return df, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

// recordWidth 最后一个非空单元格所在的列数
func recordWidth(records [][]string) int {
	width := 0
	for _, r := range records {
		for i := len(r) - 1; i >= width; i-- {
			if strings.TrimSpace(r[i]) != "" {
				width = i + 1
				break
			}
		}
	}
	return width
}

func padRecord(r []string, width int) []string {
	if len(r) >= width {
		return r[:width]
	}
	out := make([]string, width)
	copy(out, r)
	return out
}

func isBlankRecord(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
