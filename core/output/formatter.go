// Package output provides output formatting functionality for client commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Format 输出格式
type Format string

const (
	// FormatJSON JSON格式（默认）
	FormatJSON Format = "json"
	// FormatPretty 美化JSON格式
	FormatPretty Format = "pretty"
	// FormatTable 表格格式
	FormatTable Format = "table"
	// FormatText 纯文本格式
	FormatText Format = "text"
)

// ParseFormat 解析格式名称
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatPretty, FormatTable, FormatText:
		return Format(s), nil
	case "":
		return FormatPretty, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Formatter 输出格式化器
//
// 数据输出到stdout，日志类消息输出到stderr，避免污染JSON
type Formatter struct {
	format    Format
	writer    io.Writer
	logWriter io.Writer
	silent    bool
}

// NewFormatter 创建格式化器
func NewFormatter(format Format, writer io.Writer) *Formatter {
	if writer == nil {
		writer = os.Stdout
	}

	return &Formatter{
		format:    format,
		writer:    writer,
		logWriter: os.Stderr,
	}
}

// SetLogWriter 设置日志输出目标（默认 stderr）
func (f *Formatter) SetLogWriter(writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	f.logWriter = writer
}

// SetSilent 设置静默模式
func (f *Formatter) SetSilent(silent bool) {
	f.silent = silent
}

// Print 打印输出
func (f *Formatter) Print(data interface{}) error {
	if f.silent {
		return nil
	}

	switch f.format {
	case FormatJSON:
		return f.printJSON(data, false)
	case FormatPretty:
		return f.printJSON(data, true)
	case FormatTable:
		return f.printTable(data)
	case FormatText:
		return f.printText(data)
	default:
		return f.printJSON(data, false)
	}
}

// PrintRows 打印行式表格（history等列表输出）
//
// columns 给出列顺序；table 格式之外降级为 Print
func (f *Formatter) PrintRows(columns []string, rows []map[string]interface{}) error {
	if f.silent {
		return nil
	}
	if f.format != FormatTable {
		return f.Print(rows)
	}

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	defer func() {
		_ = tw.Flush()
	}()

	if _, err := fmt.Fprintln(tw, strings.Join(columns, "\t")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			if val, ok := row[col]; ok {
				values[i] = formatValue(val)
			} else {
				values[i] = "-"
			}
		}
		if _, err := fmt.Fprintln(tw, strings.Join(values, "\t")); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// printJSON 打印JSON格式
func (f *Formatter) printJSON(data interface{}, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintln(f.writer, string(output)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// printTable 打印键值表格
func (f *Formatter) printTable(data interface{}) error {
	m, ok := toStringMap(data)
	if !ok {
		// 降级到JSON
		return f.printJSON(data, true)
	}

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	defer func() {
		_ = tw.Flush()
	}()

	if _, err := fmt.Fprintln(tw, "Key\tValue"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for key, value := range m {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", key, formatValue(value)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// toStringMap 将数据转为map(经由JSON)，便于表格输出任意结构体
func toStringMap(data interface{}) (map[string]interface{}, bool) {
	if m, ok := data.(map[string]interface{}); ok {
		return m, true
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// printText 打印纯文本格式
func (f *Formatter) printText(data interface{}) error {
	if _, err := fmt.Fprintf(f.writer, "%v\n", data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// PrintSuccess 打印成功消息
func (f *Formatter) PrintSuccess(message string) {
	if f.silent {
		return
	}
	fmt.Fprintf(f.logWriter, "✅ %s\n", message)
}

// PrintError 打印错误消息
func (f *Formatter) PrintError(err error) {
	fmt.Fprintf(f.logWriter, "❌ Error: %v\n", err)
}

// PrintWarning 打印警告消息
func (f *Formatter) PrintWarning(message string) {
	if f.silent {
		return
	}
	fmt.Fprintf(f.logWriter, "⚠️  %s\n", message)
}

// PrintInfo 打印信息消息
func (f *Formatter) PrintInfo(message string) {
	if f.silent {
		return
	}
	fmt.Fprintf(f.logWriter, "ℹ️  %s\n", message)
}

// formatValue 格式化值
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case int, int64, uint, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		return v.Format(time.RFC3339)
	case nil:
		return "-"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
