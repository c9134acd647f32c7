// provision は座席を一括登録するコマンド
//
//	go run ./cmd/provision -floor 3 -prefix A- -count 40
//
// 同じ内容で何度実行しても座席は重複しない
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/config"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-seat-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
)

func main() {
	var (
		floor   = flag.Int("floor", 0, "座席を登録する階")
		prefix  = flag.String("prefix", "", "座席番号の接頭辞（例: A-）")
		count   = flag.Int("count", 0, "登録する座席数")
		migrate = flag.Bool("migrate", true, "登録前にマイグレーションを実行する")
	)
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()
	logger.Set(logger.NewLogger(cfg.Env))
	defer func() { _ = logger.Sync() }()

	layout := seat.Layout{Floor: *floor, Prefix: *prefix, Count: *count}
	seats, err := layout.Seats(time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	if *migrate {
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("マイグレーションに失敗", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	created, err := postgres.NewSeatRepository(db).Provision(ctx, seats)
	if err != nil {
		logger.Fatal("座席の登録に失敗", zap.Error(err), zap.Int("created", created))
	}

	logger.Info("座席を登録しました",
		zap.Int("floor", *floor),
		zap.Int("requested", len(seats)),
		zap.Int("created", created),
		zap.Int("skipped", len(seats)-created),
	)
}
