// Package config provides profile management functionality for client configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Profile CLI配置Profile
type Profile struct {
	Name    string `json:"name"`     // Profile名称: local/sepolia/mainnet
	ChainID uint64 `json:"chain_id"` // 链ID(0表示不校验)

	// 节点端点
	RPCEndpoint string `json:"rpc_endpoint"` // JSON-RPC地址

	// 合约配置
	Contract ContractConfig `json:"contract"`

	// 存储服务配置
	Storage StorageConfig `json:"storage"`

	// 本地路径
	KeystorePath string `json:"keystore_path"` // Keystore目录
	DataPath     string `json:"data_path"`     // 数据目录(铸造记录)

	// 网络配置
	Timeout             Duration `json:"timeout"`               // 请求超时
	ReceiptPollInterval Duration `json:"receipt_poll_interval"` // 回执轮询间隔

	// 元数据默认值
	TokenName        string `json:"token_name,omitempty"`        // 默认代币名称
	TokenDescription string `json:"token_description,omitempty"` // 默认代币描述

	// 日志配置
	LogLevel     string `json:"log_level,omitempty"` // debug/info/warn/error
	LogFile      string `json:"log_file,omitempty"`  // 日志文件路径
	LogToConsole bool   `json:"log_to_console"`      // 是否输出到控制台
}

// ContractConfig 合约配置
//
// 合约地址与链参数通过配置注入，不在代码中硬编码
type ContractConfig struct {
	Address        string `json:"address"`                   // 合约地址(0x...)
	HasMintedCheck bool   `json:"has_minted_check"`          // 合约是否提供已铸造查询
	GasLimit       uint64 `json:"default_gas_limit,omitempty"` // 固定Gas限制(0表示估算)
}

// StorageConfig 存储服务配置
type StorageConfig struct {
	Endpoint     string   `json:"endpoint"`       // 上传服务地址
	Token        string   `json:"token"`          // Bearer凭证
	AllowDataURI bool     `json:"allow_data_uri"` // 无凭证时允许data URI降级(仅非生产)
	Timeout      Duration `json:"timeout"`        // 上传超时
}

// Duration 时间duration(支持JSON序列化)
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(dur)
	return nil
}

// ProfileManager Profile管理器
type ProfileManager struct {
	configDir      string
	currentProfile string
	profiles       map[string]*Profile
}

// NewProfileManager 创建Profile管理器
func NewProfileManager(configDir string) (*ProfileManager, error) {
	if configDir == "" {
		// 默认配置目录: ~/.retromint
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		configDir = filepath.Join(homeDir, ".retromint")
	}

	// 确保配置目录存在
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	pm := &ProfileManager{
		configDir: configDir,
		profiles:  make(map[string]*Profile),
	}

	// 加载所有profiles
	if err := pm.loadProfiles(); err != nil {
		return nil, err
	}

	// 加载当前profile
	if err := pm.loadCurrentProfile(); err != nil {
		// 如果没有当前profile,使用默认
		pm.currentProfile = "local"
	}

	return pm, nil
}

// ConfigDir 返回配置目录
func (pm *ProfileManager) ConfigDir() string {
	return pm.configDir
}

// loadProfiles 加载所有profiles
func (pm *ProfileManager) loadProfiles() error {
	profilesDir := filepath.Join(pm.configDir, "profiles")

	// 如果profiles目录不存在,创建默认profiles
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		if err := os.MkdirAll(profilesDir, 0700); err != nil {
			return fmt.Errorf("create profiles dir: %w", err)
		}

		if err := pm.createDefaultProfiles(); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isJSONFile(entry.Name()) {
			continue
		}

		profilePath := filepath.Join(profilesDir, entry.Name())
		profile, err := pm.loadProfile(profilePath)
		if err != nil {
			// 记录错误但继续
			fmt.Fprintf(os.Stderr, "Warning: failed to load profile %s: %v\n", entry.Name(), err)
			continue
		}

		pm.profiles[profile.Name] = profile
	}

	return nil
}

// loadProfile 加载单个profile
func (pm *ProfileManager) loadProfile(filePath string) (*Profile, error) {
	//nolint:gosec // G304: filePath 来自配置目录，路径安全可控
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	pm.applyDefaults(&profile)
	return &profile, nil
}

// applyDefaults 填充默认路径与网络配置
func (pm *ProfileManager) applyDefaults(profile *Profile) {
	if profile.KeystorePath == "" {
		profile.KeystorePath = filepath.Join(pm.configDir, "keystores", profile.Name)
	}
	if profile.DataPath == "" {
		profile.DataPath = filepath.Join(pm.configDir, "data", profile.Name)
	}
	if profile.Timeout == 0 {
		profile.Timeout = Duration(30 * time.Second)
	}
	if profile.ReceiptPollInterval == 0 {
		profile.ReceiptPollInterval = Duration(2 * time.Second)
	}
	if profile.Storage.Timeout == 0 {
		profile.Storage.Timeout = Duration(60 * time.Second)
	}
	if profile.LogLevel == "" {
		profile.LogLevel = "info"
	}
	if profile.LogFile == "" {
		profile.LogFile = filepath.Join(pm.configDir, "logs", "retromint.log")
	}
}

// loadCurrentProfile 加载当前profile
func (pm *ProfileManager) loadCurrentProfile() error {
	currentFile := filepath.Join(pm.configDir, "current")
	//nolint:gosec // G304: currentFile 来自配置目录，路径安全可控
	data, err := os.ReadFile(currentFile)
	if err != nil {
		return err
	}

	pm.currentProfile = string(data)
	return nil
}

// saveCurrentProfile 保存当前profile
func (pm *ProfileManager) saveCurrentProfile() error {
	currentFile := filepath.Join(pm.configDir, "current")
	return os.WriteFile(currentFile, []byte(pm.currentProfile), 0600)
}

// createDefaultProfiles 创建默认profiles
func (pm *ProfileManager) createDefaultProfiles() error {
	profiles := []*Profile{
		{
			Name:        "local",
			ChainID:     31337,
			RPCEndpoint: "http://localhost:8545",
			Contract: ContractConfig{
				HasMintedCheck: true,
			},
			Storage: StorageConfig{
				// 本地开发无凭证时允许data URI降级
				AllowDataURI: true,
			},
			Timeout:             Duration(30 * time.Second),
			ReceiptPollInterval: Duration(time.Second),
			LogToConsole:        true,
			LogLevel:            "debug",
		},
		{
			Name:        "sepolia",
			ChainID:     11155111,
			RPCEndpoint: "https://rpc.sepolia.org",
			Contract: ContractConfig{
				HasMintedCheck: true,
			},
			Timeout:             Duration(60 * time.Second),
			ReceiptPollInterval: Duration(4 * time.Second),
		},
		{
			Name:        "mainnet",
			ChainID:     1,
			RPCEndpoint: "https://eth.llamarpc.com",
			Contract: ContractConfig{
				HasMintedCheck: true,
			},
			Timeout:             Duration(60 * time.Second),
			ReceiptPollInterval: Duration(6 * time.Second),
		},
	}

	for _, profile := range profiles {
		if err := pm.SaveProfile(profile); err != nil {
			return err
		}
	}

	// 设置local为当前profile
	pm.currentProfile = "local"
	return pm.saveCurrentProfile()
}

// GetProfile 获取指定profile
func (pm *ProfileManager) GetProfile(name string) (*Profile, error) {
	profile, exists := pm.profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile not found: %s", name)
	}
	return profile, nil
}

// GetCurrentProfile 获取当前profile
func (pm *ProfileManager) GetCurrentProfile() (*Profile, error) {
	return pm.GetProfile(pm.currentProfile)
}

// CurrentProfileName 返回当前profile名称
func (pm *ProfileManager) CurrentProfileName() string {
	return pm.currentProfile
}

// ListProfiles 列出所有profiles
func (pm *ProfileManager) ListProfiles() []string {
	names := make([]string, 0, len(pm.profiles))
	for name := range pm.profiles {
		names = append(names, name)
	}
	return names
}

// SaveProfile 保存profile
func (pm *ProfileManager) SaveProfile(profile *Profile) error {
	if profile.Name == "" {
		return fmt.Errorf("profile name is empty")
	}

	// 在保存前填充默认值，保持与 loadProfile 行为一致
	pm.applyDefaults(profile)

	profilePath := filepath.Join(pm.configDir, "profiles", profile.Name+".json")

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := os.WriteFile(profilePath, data, 0600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	pm.profiles[profile.Name] = profile
	return nil
}

// SwitchProfile 切换profile
func (pm *ProfileManager) SwitchProfile(name string) error {
	if _, exists := pm.profiles[name]; !exists {
		return fmt.Errorf("profile not found: %s", name)
	}

	pm.currentProfile = name
	return pm.saveCurrentProfile()
}

// DeleteProfile 删除profile
func (pm *ProfileManager) DeleteProfile(name string) error {
	// 不能删除当前profile
	if name == pm.currentProfile {
		return fmt.Errorf("cannot delete current profile")
	}

	profilePath := filepath.Join(pm.configDir, "profiles", name+".json")
	if err := os.Remove(profilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete profile file: %w", err)
	}

	delete(pm.profiles, name)
	return nil
}

// isJSONFile 检查是否是JSON文件
func isJSONFile(name string) bool {
	return filepath.Ext(name) == ".json"
}
