// Package assets 管理本地卡图目录以及卡图在专用端口上的传输。
package assets

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// 下载的卡图统一保存为 jpg
const downloadExt = ".jpg"

var unsafeChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "\x00", "")

// Catalog 本地卡图目录，按卡名（忽略大小写和扩展名）索引
type Catalog struct {
	dirs        []string
	downloadDir string

	mu    sync.RWMutex
	index map[string]string // 小写卡名 -> 文件路径
}

// NewCatalog 创建目录并建立索引；目录不存在时视为空
func NewCatalog(cardsDir, downloadDir string) (*Catalog, error) {
	c := &Catalog{
		dirs:        []string{cardsDir, downloadDir},
		downloadDir: downloadDir,
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload 重新扫描所有目录
func (c *Catalog) Reload() error {
	index := make(map[string]string)
	for _, dir := range c.dirs {
		if dir == "" {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			base := d.Name()
			key := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
			if _, ok := index[key]; !ok {
				index[key] = path
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("扫描卡图目录 %s 失败: %w", dir, err)
		}
	}

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	return nil
}

func key(name string) string {
	return strings.ToLower(unsafeChars.Replace(strings.TrimSpace(name)))
}

// Find 返回卡图路径
func (c *Catalog) Find(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	path, ok := c.index[key(name)]
	return path, ok
}

// Missing 返回本地缺失卡图的卡名，保持输入顺序
func (c *Catalog) Missing(names []string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := c.Find(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Open 打开卡图
func (c *Catalog) Open(name string) (io.ReadCloser, error) {
	path, ok := c.Find(name)
	if !ok {
		return nil, fmt.Errorf("卡图 %q: %w", name, fs.ErrNotExist)
	}
	return os.Open(path)
}

// Store 将卡图保存到下载目录并加入索引
func (c *Catalog) Store(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(c.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("创建下载目录失败: %w", err)
	}

	path := filepath.Join(c.downloadDir, unsafeChars.Replace(strings.TrimSpace(name))+downloadExt)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("写入卡图 %q 失败: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.index[key(name)] = path
	c.mu.Unlock()
	return path, nil
}
