package utils

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var rosterExtensions = []string{".json", ".yaml", ".yml"}

// ValidateRosterFilename 检查上传的名单文件名，返回可以安全拼接到任务目录下的文件名
func ValidateRosterFilename(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("文件名 %q 无效", filename)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(rosterExtensions, ext) {
		return "", fmt.Errorf("不支持的文件类型 %q，只支持 %s", ext, strings.Join(rosterExtensions, "、"))
	}

	return name, nil
}

// ValidateTaskID 要求任务 ID 是一个合法的 UUID
func ValidateTaskID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("任务 ID %q 不是合法的 UUID", id)
	}
	return nil
}
