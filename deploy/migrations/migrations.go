// Package migrations 内嵌内容归档的 MySQL 建表脚本。
// 文件名以四位版本号开头，按版本顺序执行。
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var Files embed.FS

// Names 按文件名顺序返回所有 .sql 迁移脚本。
func Names() ([]string, error) {
	entries, err := fs.ReadDir(Files, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
