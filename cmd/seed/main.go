package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/seed"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var numTeams int
	var fixed int
	var seedValue int64
	var output string
	var taskID string
	var resultPath string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 生成随机名单文件, 2: 把结果文件导入数据库)")
	flag.IntVar(&n, "n", 40, "名单中的选手数量")
	flag.IntVar(&numTeams, "num-teams", 0, "队伍数量，只在需要固定分配时使用")
	flag.IntVar(&fixed, "fixed", 0, "随机固定分配的选手数量")
	flag.Int64Var(&seedValue, "seed", 0, "随机种子，0 表示随机")
	flag.StringVar(&output, "o", "players.json", "名单文件的输出路径")
	flag.StringVar(&taskID, "task", "", "导入结果时关联的任务 ID")
	flag.StringVar(&resultPath, "result", "", "要导入的结果文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 执行操作
	switch op {
	case 0:
		logger.Error("未指定操作")
	case 1:
		roster, err := seed.GenerateRoster(seed.Options{
			Players:  n,
			NumTeams: numTeams,
			Fixed:    fixed,
			Seed:     seedValue,
		})
		if err != nil {
			logger.Error("无法生成随机名单", slog.String("error", err.Error()))
			return
		}

		if err := roster.WriteFile(output); err != nil {
			logger.Error("无法写入名单文件", slog.String("error", err.Error()))
			return
		}

		logger.Info("生成名单成功", slog.Int("count", len(roster.Players)), slog.Int("fixed", len(roster.FixedAssignments)), slog.String("path", output))
	case 2:
		if taskID == "" || resultPath == "" {
			logger.Error("请指定任务 ID 和结果文件")
			return
		}

		res, err := store.LoadFile(resultPath)
		if err != nil {
			logger.Error("无法读取结果文件", slog.String("error", err.Error()))
			return
		}

		// 读取配置文件
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("无法读取配置文件", slog.String("error", err.Error()))
			return
		}

		// 创建数据库连接池
		dbpool, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			logger.Error("无法创建数据库连接池", "error", err)
			return
		}
		defer dbpool.Close()

		dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
		defer cancel()

		// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
		if err := dbpool.PingContext(ctx); err != nil {
			logger.Error("无法连接到数据库", "error", err)
			return
		}

		repo := repository.NewRepository(cfg, dbpool)
		id, err := repo.InsertAssignmentResult(context.Background(), taskID, res)
		if err != nil {
			logger.Error("无法插入分组结果", slog.String("error", err.Error()))
			return
		}

		logger.Info("导入分组结果成功", slog.String("ref", repository.FormatRef(id)))
	default:
		logger.Error("指定的操作非法")
	}
}
