package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"

	"github.com/char5742/octopus/internal/api"
	"github.com/char5742/octopus/internal/client"
	"github.com/char5742/octopus/internal/config"
	"github.com/char5742/octopus/internal/device"
	"github.com/char5742/octopus/internal/transport"
)

func main() {
	// コマンドライン引数の解析
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	useApi := flag.Bool("api", false, "ステータスAPIサーバーを起動します")
	port := flag.Int("port", 8080, "APIサーバーのポート番号")
	openBrowser := flag.Bool("open", false, "起動後にステータスページをブラウザで開きます (-api と併用)")
	clientMode := flag.Bool("client", false, "クライアントとして受信したイベントを注入します")
	clientID := flag.Int("id", client.DefaultIndex, "クライアント番号 (-client)")
	key := flag.String("key", "", "事前共有鍵 (-client)")
	group := flag.String("group", transport.DefaultGroup, "マルチキャストグループ (-client)")
	udpPort := flag.Int("udp-port", transport.DefaultPort, "マルチキャストのポート番号 (-client)")
	iface := flag.String("iface", "", "受信に使うインターフェースのIPアドレスまたは名前 (-client)")
	list := flag.Bool("list", false, "入力デバイスの一覧を表示して終了します")
	initConfig := flag.Bool("init", false, "サンプル設定ファイルを書き出して終了します")
	logLevel := flag.String("loglevel", "info", "ログレベル (debug, info, warn, error)")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("ログレベルが不正です: %v", err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if *list {
		runList()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *clientMode {
		runClient(ctx, client.Config{
			Index: *clientID,
			Key:   []byte(*key),
			Network: transport.Options{
				Group:     *group,
				Port:      *udpPort,
				Interface: *iface,
			},
		})
		return
	}

	// 設定ファイルパスの決定
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath, err = config.DefaultConfigPath()
		if err != nil {
			log.Fatalf("デフォルト設定ディレクトリの取得に失敗しました: %v", err)
		}
	}

	if *initConfig {
		runInit(cfgPath)
		return
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("設定ファイルの読み込みに失敗しました: %v", err)
	}
	log.Infof("設定ファイルを読み込みました: %s", cfgPath)

	runRouter(ctx, cfg, *useApi, *port, *openBrowser)
}

// 入力デバイス一覧の表示
func runList() {
	infos, err := device.List()
	if err != nil {
		log.Fatalf("デバイス一覧の取得に失敗しました: %v", err)
	}
	device.PrintList(os.Stdout, infos)
}

// サンプル設定の書き出し
func runInit(cfgPath string) {
	if _, err := os.Stat(cfgPath); err == nil {
		log.Fatalf("設定ファイルは既に存在します: %s", cfgPath)
	}
	if err := config.SaveConfig(cfgPath, config.ExampleConfig()); err != nil {
		log.Fatalf("設定ファイルの保存に失敗しました: %v", err)
	}
	fmt.Printf("サンプル設定を書き出しました: %s\n", cfgPath)
}

// クライアントモードでの実行
func runClient(ctx context.Context, cfg client.Config) {
	err := client.Start(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("クライアントが停止しました: %v", err)
	}
	log.Info("シャットダウンします...")
}

// ルーターモードでの実行
func runRouter(ctx context.Context, cfg *config.Config, useApi bool, port int, openBrowser bool) {
	res, err := cfg.Resolve()
	if err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	service := api.NewRouterService(res)
	if err := service.Start(); err != nil {
		log.Fatalf("ルーターの起動に失敗しました: %v", err)
	}

	if useApi {
		server := api.NewServer(cfg, service, port)
		go func() {
			if err := server.Start(); err != nil {
				log.Errorf("APIサーバーの起動に失敗しました: %v", err)
			}
		}()
		defer server.Stop()

		if openBrowser {
			if err := browser.OpenURL(server.URL()); err != nil {
				log.Warnf("ブラウザを開けませんでした: %v", err)
			}
		}
	}

	select {
	case <-ctx.Done():
		log.Info("シャットダウンします...")
		service.Stop()
	case <-service.Done():
		if err := service.Err(); err != nil {
			log.Fatalf("ルーターが異常終了しました: %v", err)
		}
	}
}
