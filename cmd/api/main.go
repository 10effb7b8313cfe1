package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/handler"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/lease"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/notify"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/store"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/supervisor"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	// 上传的名单和文件存储的结果都放在数据目录下
	files := store.NewFileStore(cfg.Task.DataDir)
	if err := os.MkdirAll(files.Dir(), 0o755); err != nil {
		logger.Error("无法创建数据目录", "dir", files.Dir(), "error", err)
		return
	}

	opts := supervisor.Options{
		Parameters: scheduler.Parameters{
			PopulationSize: cfg.Task.PopulationSize,
			CrossoverRate:  cfg.Task.CrossoverRate,
			MutationRate:   cfg.Task.MutationRate,
			GeneMutateRate: cfg.Task.GeneMutateRate,
			TournamentSize: cfg.Task.TournamentSize,
			Workers:        cfg.Task.Workers,
		},
		MaxGenerations: cfg.Task.MaxGenerations,
		SaveTimeout:    time.Duration(cfg.Database.TransactionTimeout) * time.Second,
		Store:          files,
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	if cfg.Store.Driver == "postgres" {
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
		opts.Store = repository.NewResultStore(repo)
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("无法连接到 redis", "error", err)
			return
		}

		opts.Lease = lease.NewRedisLease(
			rdb,
			time.Duration(cfg.Redis.LeaseExpiration)*time.Second,
			time.Duration(cfg.Redis.OperationExpiration)*time.Second,
		)
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	if cfg.RabbitMQ.Enabled {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		// 建立通道
		ch, err := conn.Channel()
		if err != nil {
			logger.Error("无法建立通道", "error", err)
			return
		}
		defer ch.Close()

		// 声明队列
		_, err = ch.QueueDeclare(
			cfg.RabbitMQ.Queue,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			logger.Error("无法声明队列", "error", err)
			return
		}

		opts.Notifier = notify.NewMailNotifier(ch, cfg.RabbitMQ.Queue, cfg.Email.NotifyTo, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	}

	/**********************************************
	 * 注册指标
	 **********************************************/
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts.Metrics = metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	/**********************************************
	 * 创建任务管理器
	 **********************************************/
	sup, err := supervisor.New(opts)
	if err != nil {
		logger.Error("无法创建任务管理器", "error", err)
		return
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, sup, files, metricsHandler)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}

	// 正在运行的任务会被取消，已经跑完的代数中最好的结果仍会被保存
	if err := sup.Shutdown(ctx); err != nil {
		logger.Error("等待任务结束超时", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
