package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/nhirsama/infra-console/src/config"
	"github.com/nhirsama/infra-console/src/console"
	"github.com/nhirsama/infra-console/src/datastore"
	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/notify"
	"github.com/spf13/pflag"
)

// ErrNotLoggedIn 需要登录的命令在未登录时返回
var ErrNotLoggedIn = errors.New("未登录，请先执行 login")

// command 一个子命令
type command struct {
	name  string
	args  string // 位置参数说明
	nargs int
	usage string
	// auth 为 true 时先恢复会话，未登录直接报错
	auth bool
	// local 为 true 时不创建控制台
	local bool
	flags func(fs *pflag.FlagSet)
	run   func(e *env) error
}

// env 命令执行环境
type env struct {
	ctx     context.Context
	cfg     *config.Config
	fs      *pflag.FlagSet
	in      io.Reader
	out     io.Writer
	console *console.Console
	closers []func()
}

func (e *env) arg(i int) string {
	return e.fs.Arg(i)
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// Execute 解析参数并执行子命令
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(out)
		return nil
	}
	cmd, ok := lookup(args[0])
	if !ok {
		printUsage(out)
		return fmt.Errorf("未知命令 %q", args[0])
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(out)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() < cmd.nargs {
		return fmt.Errorf("用法: %s %s", cmd.name, cmd.args)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	e := &env{ctx: ctx, cfg: cfg, fs: fs, in: in, out: out}
	defer e.close()

	if !cmd.local {
		if err := e.openConsole(cmd.name == "predict"); err != nil {
			return err
		}
	}
	if cmd.auth {
		state, err := e.console.Session.Restore(ctx)
		if err != nil {
			return err
		}
		if state != inter.SessionAuthenticated {
			return ErrNotLoggedIn
		}
	}
	return cmd.run(e)
}

// openStorage 按配置打开令牌存储
func (e *env) openStorage() (inter.TokenStorage, error) {
	switch e.cfg.TokenStore {
	case "file":
		path := e.cfg.TokenFile
		if path == "" {
			path = datastore.DefaultTokenFile()
		}
		return datastore.NewTokenStoreFile(path)
	default:
		store, err := datastore.NewTokenStoreSql(e.cfg.StateDriver, e.cfg.StateDSN)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() {
			if err := store.Close(); err != nil {
				log.Printf("关闭令牌数据库失败: %v", err)
			}
		})
		return store.WithProfile(e.cfg.Profile), nil
	}
}

// openSignal 配置了 broker 时订阅预测完成事件，否则返回 nil 由调用方轮询
func (e *env) openSignal() inter.CompletionSignal {
	if e.cfg.MqttBroker == "" {
		return nil
	}
	queue := notify.NewMessageQueue(16)
	listener, err := notify.DialListener(e.mqttConfig("-"+e.fs.Name()), queue)
	if err != nil {
		log.Printf("订阅预测完成事件失败，改为轮询: %v", err)
		return nil
	}
	e.closers = append(e.closers, listener.Close)
	return notify.NewQueueSignal(queue)
}

func (e *env) mqttConfig(suffix string) notify.MqttConfig {
	return notify.MqttConfig{
		Broker:   e.cfg.MqttBroker,
		ClientID: e.cfg.MqttClientID + suffix,
		Username: e.cfg.MqttUsername,
		Password: e.cfg.MqttPassword,
		Topic:    e.cfg.MqttTopic,
	}
}

func (e *env) openConsole(withSignal bool) error {
	storage, err := e.openStorage()
	if err != nil {
		return err
	}
	var sig inter.CompletionSignal
	if withSignal {
		sig = e.openSignal()
	}
	c, err := console.New(console.Options{
		BaseURL:      e.cfg.APIURL,
		HTTPClient:   &http.Client{Timeout: e.cfg.HTTPTimeout},
		Storage:      storage,
		Signal:       sig,
		PollInterval: e.cfg.PollInterval,
		MaxWait:      e.cfg.PredictionWait,
	})
	if err != nil {
		return err
	}
	e.console = c
	return nil
}

func lookup(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "用法: infra-console <命令> [参数]")
	fmt.Fprintln(out)
	list := commands()
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	for _, c := range list {
		fmt.Fprintf(out, "  %-14s %s\n", strings.TrimSpace(c.name+" "+c.args), c.usage)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "通用参数: --api-url --profile --token-store --state-driver --state-dsn --token-file --config")
}
