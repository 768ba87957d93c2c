// Package cache 持久化的文本指纹集合，保证同一段文本只会被打分一次。
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/iWorld-y/industry_radar/app/industry_radar/internal/fsutil"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
)

// Fingerprint 计算归一化文本的指纹：去首尾空白、折叠空白、转小写后取 SHA-256
func Fingerprint(text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

type fileFormat struct {
	Processed []string `json:"processed"`
}

// Cache 指纹集合。只在运行期间有新增时才写回磁盘
type Cache struct {
	mu      sync.Mutex
	path    string
	set     map[string]struct{}
	initial int
}

// Load 从 path 加载缓存。文件不存在或损坏时返回空集合，不会报错
func Load(path string) *Cache {
	c := &Cache{path: path, set: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Log.Warnf("读取去重缓存失败，使用空缓存: %v", err)
		}
		return c
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Log.Warnf("去重缓存已损坏，使用空缓存: %v", err)
		return c
	}
	for _, fp := range f.Processed {
		c.set[fp] = struct{}{}
	}
	c.initial = len(c.set)
	return c
}

// Contains 指纹是否已存在
func (c *Cache) Contains(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[fp]
	return ok
}

// Add 加入指纹
func (c *Cache) Add(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[fp] = struct{}{}
}

// Len 当前指纹数量
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.set)
}

// Added 加载后新增的指纹数量
func (c *Cache) Added() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.set) - c.initial
}

// Save 集合有增长时写回磁盘，返回是否写入
func (c *Cache) Save() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.set) <= c.initial {
		return false, nil
	}

	f := fileFormat{Processed: make([]string, 0, len(c.set))}
	for fp := range c.set {
		f.Processed = append(f.Processed, fp)
	}
	sort.Strings(f.Processed)

	data, err := json.Marshal(f)
	if err != nil {
		return false, fmt.Errorf("marshal cache: %w", err)
	}
	if err := fsutil.WriteAtomic(c.path, data); err != nil {
		return false, err
	}
	c.initial = len(c.set)
	return true, nil
}
