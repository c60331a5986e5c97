// Package migrations 内嵌 SQL 迁移脚本, 按文件名顺序执行。
package migrations

import "embed"

// FS 全部 *.sql 迁移。
//
//go:embed *.sql
var FS embed.FS
