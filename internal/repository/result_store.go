package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

const refPrefix = "pg:"

// ResultStore 让任务管理器把结果保存到数据库中，结果引用的格式为 pg:<id>
type ResultStore struct {
	repo *Repository
}

func NewResultStore(repo *Repository) *ResultStore {
	return &ResultStore{repo: repo}
}

func (s *ResultStore) Save(ctx context.Context, jobID string, res *domain.AssignmentResult) (string, error) {
	id, err := s.repo.InsertAssignmentResult(ctx, jobID, res)
	if err != nil {
		return "", err
	}
	return FormatRef(id), nil
}

func (s *ResultStore) Load(ctx context.Context, ref string) (*domain.AssignmentResult, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	return s.repo.GetAssignmentResultByID(ctx, id)
}

func FormatRef(id int64) string {
	return refPrefix + strconv.FormatInt(id, 10)
}

func ParseRef(ref string) (int64, error) {
	raw, ok := strings.CutPrefix(ref, refPrefix)
	if !ok {
		return 0, fmt.Errorf("无效的结果引用 %q", ref)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("无效的结果引用 %q", ref)
	}
	return id, nil
}
