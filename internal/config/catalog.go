package config

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	pkgerr "github.com/BxNxM/even-dev/pkg/errors"
	"github.com/BxNxM/even-dev/pkg/logger"
)

// catalogMu 保护 catalog 文件的并发读写。
var catalogMu sync.Mutex

// AppSpec 单个应用实例的定义: 选项列表 + 点击语义 profile。
type AppSpec struct {
	Name    string   `yaml:"name"`
	Title   string   `yaml:"title"`
	Profile string   `yaml:"profile"`
	Options []string `yaml:"options"`
}

// Catalog apps.yaml 的顶层结构。
type Catalog struct {
	Default string    `yaml:"default"`
	Apps    []AppSpec `yaml:"apps"`
}

// DefaultCatalog 内置目录, catalog 文件不存在时使用。
func DefaultCatalog() *Catalog {
	return &Catalog{
		Default: "theme",
		Apps: []AppSpec{
			{
				Name:    "theme",
				Title:   "Theme Picker",
				Profile: "theme",
				Options: []string{"Blue", "Green", "Orange"},
			},
			{
				Name:    "launcher",
				Title:   "Launcher",
				Profile: "launcher",
				Options: []string{"https://evenrealities.com", "https://go.dev", "https://example.com"},
			},
		},
	}
}

// LoadCatalog 加载 apps.yaml。文件不存在时返回内置目录; 解析失败返回错误。
func LoadCatalog(path string) (*Catalog, error) {
	catalogMu.Lock()
	defer catalogMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("app catalog not found, using built-in", logger.FieldPath, path)
			return DefaultCatalog(), nil
		}
		return nil, pkgerr.Wrap(err, "Config.LoadCatalog", "read catalog")
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, pkgerr.Wrap(err, "Config.LoadCatalog", "parse catalog")
	}
	if len(cat.Apps) == 0 {
		return nil, pkgerr.Wrap(pkgerr.ErrInvalidInput, "Config.LoadCatalog", "catalog has no apps")
	}
	for i := range cat.Apps {
		cat.Apps[i].Name = strings.TrimSpace(cat.Apps[i].Name)
		if cat.Apps[i].Name == "" {
			return nil, pkgerr.Wrapf(pkgerr.ErrInvalidInput, "Config.LoadCatalog", "app #%d has no name", i)
		}
	}
	return &cat, nil
}

// SaveCatalog 原子写入 catalog (tmp + rename)。
func SaveCatalog(path string, cat *Catalog) error {
	catalogMu.Lock()
	defer catalogMu.Unlock()

	encoded, err := yaml.Marshal(cat)
	if err != nil {
		return pkgerr.Wrap(err, "Config.SaveCatalog", "marshal")
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, encoded, 0o644); err != nil {
		return pkgerr.Wrap(err, "Config.SaveCatalog", "write tmp")
	}
	return os.Rename(tmpPath, path)
}

// Lookup 按名称查找应用; name 为空时使用 Default, 再退回第一个。
func (c *Catalog) Lookup(name string) (AppSpec, bool) {
	want := strings.TrimSpace(name)
	if want == "" {
		want = c.Default
	}
	for _, app := range c.Apps {
		if strings.EqualFold(app.Name, want) {
			return app, true
		}
	}
	if strings.TrimSpace(name) == "" && len(c.Apps) > 0 {
		return c.Apps[0], true
	}
	return AppSpec{}, false
}
