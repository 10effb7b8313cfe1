package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/render"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/result"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/roster"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "balance",
	Short:         "在命令行中运行分组或交换成员",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	numTeams   int
	repeat     int
	dataPath   string
	workers    int
	seed       int64
	resultPath string
	swapInfo   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "读取名单并运行遗传算法，结果保存在名单同目录下",
	Long: `读取名单并运行遗传算法，按 CTRL+C 会提前停止并保存目前为止最好的结果。

示例:
  balance run --num-teams 4 --repeat 1000 --data-path data/players.json`,
	RunE: runBalance,
}

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "在已有的结果上交换成员，保存为新的结果文件",
	Long: `在已有的结果上交换成员，原结果文件不会被修改。

示例:
  balance swap --filepath data/players/result-xxx.json --swap-info "P1,P2;P3,P4"`,
	RunE: runSwap,
}

func init() {
	runCmd.Flags().IntVar(&numTeams, "num-teams", 0, "队伍数量")
	runCmd.Flags().IntVar(&repeat, "repeat", 1000, "迭代次数")
	runCmd.Flags().StringVar(&dataPath, "data-path", "", "名单文件路径（.json/.yaml）")
	runCmd.Flags().IntVar(&workers, "workers", 0, "并行计算适应度的 worker 数量，0 表示使用 CPU 核数")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "随机种子，0 表示随机")
	_ = runCmd.MarkFlagRequired("num-teams")
	_ = runCmd.MarkFlagRequired("data-path")

	swapCmd.Flags().StringVar(&resultPath, "filepath", "", "要修改的结果文件")
	swapCmd.Flags().StringVar(&swapInfo, "swap-info", "", "交换信息，格式为 a,b;c,d")
	_ = swapCmd.MarkFlagRequired("filepath")
	_ = swapCmd.MarkFlagRequired("swap-info")

	rootCmd.AddCommand(runCmd, swapCmd)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("执行失败", "error", err)
		os.Exit(1)
	}
}

// cliTracker 在收到中断信号后停止迭代，每完成 10% 输出一次进度
type cliTracker struct {
	ctx       context.Context
	lastTenth int
}

func (t *cliTracker) Cancelled() bool {
	return t.ctx.Err() != nil
}

func (t *cliTracker) Checkpoint(cp scheduler.Checkpoint) {
	tenth := (cp.Generation + 1) * 10 / cp.Total
	if tenth == t.lastTenth {
		return
	}
	t.lastTenth = tenth

	remaining := time.Duration(float64(cp.Duration) * float64(cp.Total-cp.Generation-1))
	slog.Info("迭代进度", "progress", fmt.Sprintf("%d%%", tenth*10), "best", cp.BestFitness, "remaining", remaining.Round(time.Second))
}

func runBalance(cmd *cobra.Command, args []string) error {
	start := time.Now()

	r, err := roster.LoadRoster(dataPath, numTeams)
	if err != nil {
		return err
	}

	params := scheduler.DefaultParameters(repeat)
	params.Workers = workers
	params.Seed = seed

	sch, err := scheduler.New(params, r)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := sch.Run(&cliTracker{ctx: ctx})
	if err != nil {
		return err
	}
	if outcome.Best == nil {
		return fmt.Errorf("任务在第一代完成前被取消，没有结果")
	}
	if outcome.Cancelled {
		slog.Warn("任务被取消，保存目前为止最好的结果", "generations", outcome.Generations)
	}

	res, err := result.Build(outcome.Best.Genes, r, domain.ResultParameters{
		NumTeams: numTeams,
		Repeat:   repeat,
		DataPath: dataPath,
		RunTime:  time.Since(start).Seconds(),
	})
	if err != nil {
		return err
	}

	// 结果保存在 <名单目录>/<名单文件名>/ 下
	base := strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath))
	files := store.NewFileStore(filepath.Dir(dataPath))

	return save(files, base, res)
}

func runSwap(cmd *cobra.Command, args []string) error {
	prev, err := store.LoadFile(resultPath)
	if err != nil {
		return err
	}

	res, err := result.Revise(prev, swapInfo, resultPath)
	if err != nil {
		return err
	}

	root, jobID, err := swapTarget(resultPath)
	if err != nil {
		return err
	}

	return save(store.NewFileStore(root), jobID, res)
}

// swapTarget 返回新结果的存储根目录和任务目录名，新结果和原结果放在同一个目录
// 相对路径先转成绝对路径，否则当前目录下的文件会得到 "." 这样的目录名
func swapTarget(path string) (root, jobID string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("无法解析结果文件路径: %w", err)
	}

	dir := filepath.Dir(abs)
	return filepath.Dir(dir), filepath.Base(dir), nil
}

func save(files *store.FileStore, jobID string, res *domain.AssignmentResult) error {
	path, err := files.Save(context.Background(), jobID, res)
	if err != nil {
		return err
	}

	pngPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	if err := render.SavePNG(pngPath, res); err != nil {
		return err
	}

	for _, team := range res.Teams {
		names := make([]string, 0, len(team.Members))
		for _, m := range team.Members {
			names = append(names, m.Name)
		}
		fmt.Printf("%s (%.1f): %s\n", team.Label, team.TotalScore, strings.Join(names, ", "))
	}

	slog.Info("结果已保存", "result", path, "image", pngPath)
	return nil
}
