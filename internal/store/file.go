package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

// FileStore 把结果保存为 <dir>/<jobID>/result-<uuid v7>.json
// uuid v7 按时间递增，同一个任务的结果按文件名排序即为生成顺序
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string {
	return s.dir
}

// JobDir 返回任务的数据目录，上传的名单也保存在这里
func (s *FileStore) JobDir(jobID string) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, jobID), nil
}

func (s *FileStore) Save(ctx context.Context, jobID string, res *domain.AssignmentResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	jobDir, err := s.JobDir(jobID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	path := filepath.Join(jobDir, "result-"+id.String()+".json")

	data, err := json.MarshalIndent(res, "", "    ")
	if err != nil {
		return "", err
	}

	// O_EXCL 保证不会覆盖已有的结果
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	return path, nil
}

func (s *FileStore) Load(ctx context.Context, ref string) (*domain.AssignmentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(ref)
}

// LoadFile 读取一个结果文件，也用于命令行直接读取历史结果
func LoadFile(path string) (*domain.AssignmentResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	res := &domain.AssignmentResult{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("无法解析结果文件 %s: %w", path, err)
	}
	return res, nil
}

func validateJobID(jobID string) error {
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) {
		return errors.New("非法的任务 ID")
	}
	return nil
}
