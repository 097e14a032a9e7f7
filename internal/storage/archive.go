package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/palemoky/magic-table/internal/game/deck"
)

// 文件名中的时间格式，例如 2011-06-15 23.03.48
const archiveTimeLayout = "2006-01-02 15.04.05"

// DeckArchive 保存收到的牌组
type DeckArchive interface {
	ArchiveDeck(ctx context.Context, owner string, d deck.Deck) error
}

// FileArchive 把牌组写成文本文件
type FileArchive struct {
	dir string
	now func() time.Time
}

// NewFileArchive 创建文件归档
func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{dir: dir, now: time.Now}
}

// FileName 归档文件名：<时间> <玩家名><牌组名>.txt
func (a *FileArchive) FileName(owner string, d deck.Deck, at time.Time) string {
	return fmt.Sprintf("%s %s%s.txt", at.Format(archiveTimeLayout), owner, d.Name)
}

// ArchiveDeck 写入牌组文件
func (a *FileArchive) ArchiveDeck(_ context.Context, owner string, d deck.Deck) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("创建归档目录失败: %w", err)
	}

	path := filepath.Join(a.dir, a.FileName(owner, d, a.now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建归档文件失败: %w", err)
	}
	if _, err := d.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("写入牌组失败: %w", err)
	}
	return f.Close()
}

// MultiArchive 依次写入多个归档，返回第一个错误
type MultiArchive []DeckArchive

func (m MultiArchive) ArchiveDeck(ctx context.Context, owner string, d deck.Deck) error {
	var first error
	for _, a := range m {
		if err := a.ArchiveDeck(ctx, owner, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
