// Package ui 提供基础 UI 组件库
package ui

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Components UI组件接口，定义所有可用的UI组件
type Components interface {
	// === 数据展示组件 ===

	// ShowTable 显示表格数据
	// data: 表格数据，第一行为表头
	ShowTable(title string, data [][]string) error

	// ShowKeyValuePairs 显示键值对
	ShowKeyValuePairs(title string, pairs [][2]string) error

	// === 交互选择组件 ===

	// ShowMenu 显示菜单供用户选择
	// 返回: 选中的索引
	ShowMenu(title string, options []string) (int, error)

	// ShowConfirmDialog 显示确认对话框
	ShowConfirmDialog(title, message string) (bool, error)

	// ShowInputDialog 显示输入对话框
	// isPassword: 是否为密码输入（隐藏显示）
	ShowInputDialog(title, prompt string, isPassword bool) (string, error)

	// === 进度反馈组件 ===

	// ShowSpinner 显示加载动画
	ShowSpinner(message string) Spinner

	// === 状态显示组件 ===

	ShowSuccess(message string) error
	ShowError(message string) error
	ShowWarning(message string) error
	ShowInfo(message string) error

	// === 面板和布局组件 ===

	// ShowPanel 显示面板
	ShowPanel(title, content string) error

	// ShowHeader 显示标题
	ShowHeader(text string) error

	// ShowSection 显示分区标题
	ShowSection(text string) error
}

// Spinner 加载动画接口
type Spinner interface {
	Start() error
	UpdateText(text string) error
	Stop() error
	Success(message string) error
	Fail(message string) error
}

// ThemeConfig 主题配置
type ThemeConfig struct {
	PrimaryColor pterm.Color // 主色调
	SuccessColor pterm.Color // 成功色
	WarningColor pterm.Color // 警告色
	ErrorColor   pterm.Color // 错误色
	InfoColor    pterm.Color // 信息色
}

// GetDefaultTheme 获取默认主题配置
//
// 复古橙色主调，与风格化滤镜的暖色一致
func GetDefaultTheme() *ThemeConfig {
	return &ThemeConfig{
		PrimaryColor: pterm.FgLightYellow,
		SuccessColor: pterm.FgGreen,
		WarningColor: pterm.FgYellow,
		ErrorColor:   pterm.FgRed,
		InfoColor:    pterm.FgCyan,
	}
}

// IsInteractive 检测stdin是否为TTY
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// components pterm实现
type components struct {
	theme *ThemeConfig
}

// NewComponents 创建pterm UI组件实现
func NewComponents(theme *ThemeConfig) Components {
	if theme == nil {
		theme = GetDefaultTheme()
	}
	return &components{theme: theme}
}

// ShowTable 显示表格
func (c *components) ShowTable(title string, data [][]string) error {
	if len(data) == 0 {
		return fmt.Errorf("empty table data")
	}

	if title != "" {
		pterm.DefaultSection.Println(title)
	}
	return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()
}

// ShowKeyValuePairs 显示键值对
//
// 使用有序切片而非map，保持展示顺序稳定
func (c *components) ShowKeyValuePairs(title string, pairs [][2]string) error {
	data := [][]string{{"项目", "值"}}
	for _, pair := range pairs {
		data = append(data, []string{pair[0], pair[1]})
	}
	return c.ShowTable(title, data)
}

// ShowMenu 显示菜单选择
func (c *components) ShowMenu(title string, options []string) (int, error) {
	if title != "" {
		pterm.DefaultSection.Println(title)
	}

	result, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText("请选择一个选项").
		WithMaxHeight(10).
		WithFilter(false).
		Show()
	if err != nil {
		if err.Error() == "interrupt" {
			return -1, fmt.Errorf("用户取消操作")
		}
		return -1, fmt.Errorf("菜单选择失败: %v", err)
	}

	for i, option := range options {
		if option == result {
			return i, nil
		}
	}
	return -1, fmt.Errorf("未找到选中的选项: %s", result)
}

// ShowConfirmDialog 显示确认对话框
func (c *components) ShowConfirmDialog(title, message string) (bool, error) {
	if title != "" {
		pterm.DefaultSection.Println(title)
	}
	pterm.Info.Println(message)

	result, err := pterm.DefaultInteractiveConfirm.
		WithDefaultText("确认继续吗？").
		WithDefaultValue(false).
		Show()
	if err != nil {
		return false, fmt.Errorf("确认对话框失败: %v", err)
	}
	return result, nil
}

// ShowInputDialog 显示输入对话框
func (c *components) ShowInputDialog(title, prompt string, isPassword bool) (string, error) {
	if title != "" {
		pterm.DefaultSection.Println(title)
	}

	input := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt)
	if isPassword {
		input = input.WithMask("*")
	}

	result, err := input.Show()
	if err != nil {
		if err.Error() == "interrupt" {
			return "", fmt.Errorf("用户取消输入")
		}
		return "", fmt.Errorf("输入对话框失败: %v", err)
	}
	return result, nil
}

// ShowSpinner 显示加载动画
func (c *components) ShowSpinner(message string) Spinner {
	return &spinnerImpl{message: message}
}

// ShowSuccess 显示成功消息
func (c *components) ShowSuccess(message string) error {
	pterm.Success.Println(message)
	return nil
}

// ShowError 显示错误消息
func (c *components) ShowError(message string) error {
	pterm.Error.Println(message)
	return nil
}

// ShowWarning 显示警告消息
func (c *components) ShowWarning(message string) error {
	pterm.Warning.Println(message)
	return nil
}

// ShowInfo 显示信息消息
func (c *components) ShowInfo(message string) error {
	pterm.Info.Println(message)
	return nil
}

// ShowPanel 显示面板
func (c *components) ShowPanel(title, content string) error {
	pterm.DefaultBox.
		WithTitle(title).
		WithTitleTopCenter().
		WithBoxStyle(pterm.NewStyle(c.theme.PrimaryColor)).
		Println(content)
	return nil
}

// ShowHeader 显示标题
func (c *components) ShowHeader(text string) error {
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgDefault)).
		WithTextStyle(pterm.NewStyle(c.theme.PrimaryColor, pterm.Bold)).
		Println(text)
	return nil
}

// ShowSection 显示分区标题
func (c *components) ShowSection(text string) error {
	pterm.DefaultSection.Println(text)
	return nil
}

// spinnerImpl pterm spinner封装
type spinnerImpl struct {
	message string
	spinner *pterm.SpinnerPrinter
}

func (s *spinnerImpl) Start() error {
	spinner, err := pterm.DefaultSpinner.Start(s.message)
	if err != nil {
		return err
	}
	s.spinner = spinner
	return nil
}

func (s *spinnerImpl) UpdateText(text string) error {
	if s.spinner != nil {
		s.spinner.UpdateText(text)
	}
	return nil
}

func (s *spinnerImpl) Stop() error {
	if s.spinner != nil {
		return s.spinner.Stop()
	}
	return nil
}

func (s *spinnerImpl) Success(message string) error {
	if s.spinner != nil {
		s.spinner.Success(message)
	}
	return nil
}

func (s *spinnerImpl) Fail(message string) error {
	if s.spinner != nil {
		s.spinner.Fail(message)
	}
	return nil
}
