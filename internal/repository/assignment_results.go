package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

// InsertAssignmentResult 插入一份分组结果，返回新记录的 ID
// 交换成员后的结果也作为新记录插入，旧记录保持不变
func (r *Repository) InsertAssignmentResult(ctx context.Context, taskID string, result *domain.AssignmentResult) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO assignment_results (task_id, num_teams, repeat, data_path, run_time, original_data, swap_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	p := result.Parameters
	args := []any{taskID, p.NumTeams, p.Repeat, p.DataPath, p.RunTime, nullString(p.OriginalData), nullString(p.SwapInfo)}

	var resultID int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&resultID); err != nil {
		return 0, err
	}

	for i, team := range result.Teams {
		query := `
			INSERT INTO assignment_result_teams (assignment_result_id, position, label, total_score)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`

		var teamID int64
		if err := tx.QueryRowContext(ctx, query, resultID, i, team.Label, team.TotalScore).Scan(&teamID); err != nil {
			return 0, err
		}

		for j, member := range team.Members {
			query := `
				INSERT INTO assignment_result_team_members (assignment_result_team_id, position, name, score)
				VALUES ($1, $2, $3, $4)
			`

			if _, err := tx.ExecContext(ctx, query, teamID, j, member.Name, member.Score); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return resultID, nil
}

func (r *Repository) GetAssignmentResultByID(ctx context.Context, id int64) (*domain.AssignmentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT
			ar.num_teams,
			ar.repeat,
			ar.data_path,
			ar.run_time,
			ar.original_data,
			ar.swap_info,
			art.id,
			art.label,
			art.total_score,
			artm.name,
			artm.score
		FROM assignment_results ar
		LEFT JOIN assignment_result_teams art ON ar.id = art.assignment_result_id
		LEFT JOIN assignment_result_team_members artm ON art.id = artm.assignment_result_team_id
		WHERE ar.id = $1
		ORDER BY art.position, artm.position
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &domain.AssignmentResult{
		Teams: make([]domain.Team, 0),
	}
	found := false
	teamIndex := make(map[int64]int) // teamID -> result.Teams 中的下标

	for rows.Next() {
		var row struct {
			originalData sql.NullString
			swapInfo     sql.NullString
			teamID       sql.NullInt64
			label        sql.NullString
			totalScore   sql.NullFloat64
			memberName   sql.NullString
			memberScore  sql.NullFloat64
		}

		dst := []any{
			&result.Parameters.NumTeams,
			&result.Parameters.Repeat,
			&result.Parameters.DataPath,
			&result.Parameters.RunTime,
			&row.originalData,
			&row.swapInfo,
			&row.teamID,
			&row.label,
			&row.totalScore,
			&row.memberName,
			&row.memberScore,
		}

		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		found = true
		result.Parameters.OriginalData = row.originalData.String
		result.Parameters.SwapInfo = row.swapInfo.String

		if !row.teamID.Valid {
			continue
		}

		idx, exists := teamIndex[row.teamID.Int64]
		if !exists {
			idx = len(result.Teams)
			teamIndex[row.teamID.Int64] = idx
			result.Teams = append(result.Teams, domain.Team{
				Label:      row.label.String,
				TotalScore: row.totalScore.Float64,
				Members:    make([]domain.TeamMember, 0),
			})
		}

		if !row.memberName.Valid {
			// 这个队伍没有任何成员
			continue
		}

		result.Teams[idx].Members = append(result.Teams[idx].Members, domain.TeamMember{
			Name:  row.memberName.String,
			Score: row.memberScore.Float64,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, sql.ErrNoRows
	}

	return result, nil
}

// GetAssignmentResultIDsByTaskID 按生成顺序返回任务的所有结果 ID
func (r *Repository) GetAssignmentResultIDsByTaskID(ctx context.Context, taskID string) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `SELECT id FROM assignment_results WHERE task_id = $1 ORDER BY id`

	rows, err := r.dbpool.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
