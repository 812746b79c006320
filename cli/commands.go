package cli

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/nhirsama/infra-console/src/access"
	"github.com/nhirsama/infra-console/src/backendstub"
	"github.com/nhirsama/infra-console/src/datastore"
	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/notify"
	"github.com/nhirsama/infra-console/src/viewmodel"
	"github.com/nhirsama/infra-console/src/web"
	"github.com/spf13/pflag"
)

func commands() []command {
	return []command{
		{name: "serve", usage: "启动 Web 控制台", local: true, run: runServe},
		{name: "stub", usage: "启动开发用内存后端", local: true, flags: stubFlags, run: runStub},
		{name: "login", args: "<用户名>", nargs: 1, usage: "登录并保存令牌", flags: loginFlags, run: runLogin},
		{name: "logout", usage: "退出登录", run: runLogout},
		{name: "whoami", usage: "显示当前用户", auth: true, run: runWhoami},
		{name: "profiles", usage: "列出已保存的令牌配置档", local: true, run: runProfiles},
		{name: "stats", usage: "资产统计与高风险预测", auth: true, run: runStats},
		{name: "assets", usage: "分页列出资产", auth: true, flags: pageFlags, run: runAssets},
		{name: "asset-create", usage: "新建资产", auth: true, flags: assetFlags, run: runAssetCreate},
		{name: "asset-status", args: "<资产编号> <状态>", nargs: 2, usage: "修改资产状态", auth: true, run: runAssetStatus},
		{name: "readings", args: "<资产编号>", nargs: 1, usage: "查看聚合传感器数据", auth: true, flags: windowFlags, run: runReadings},
		{name: "record", usage: "录入一条传感器读数", auth: true, flags: recordFlags, run: runRecord},
		{name: "simulate", args: "<资产编号>", nargs: 1, usage: "生成模拟传感器数据", auth: true, run: runSimulate},
		{name: "predict", args: "<资产编号>", nargs: 1, usage: "触发预测并等待结果", auth: true, run: runPredict},
		{name: "predictions", args: "<资产编号>", nargs: 1, usage: "查看资产的预测记录", auth: true, run: runPredictions},
		{name: "high-risk", usage: "列出高风险预测", auth: true, run: runHighRisk},
	}
}

func runServe(e *env) error {
	ws, err := web.NewWebServer(web.Options{
		Addr:          e.cfg.ListenAddr,
		BaseURL:       e.cfg.APIURL,
		HTMLDir:       e.cfg.HTMLDir,
		SessionSecret: e.cfg.SessionSecret,
		CookieSecure:  e.cfg.CookieSecure,
		Signal:        e.openSignal(),
		PollInterval:  e.cfg.PollInterval,
		MaxWait:       e.cfg.PredictionWait,
	})
	if err != nil {
		return err
	}
	if err := ws.Start(e.ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "系统正常关闭")
	return nil
}

func stubFlags(fs *pflag.FlagSet) {
	fs.Bool("no-seed", false, "不写入演示数据")
}

func runStub(e *env) error {
	opts := backendstub.Options{
		Secret:          []byte(e.cfg.StubSecret),
		PredictionDelay: e.cfg.StubDelay,
	}
	if e.cfg.MqttBroker != "" {
		pub, err := notify.DialPublisher(e.mqttConfig("-stub"))
		if err != nil {
			log.Printf("连接 MQTT broker 失败，不发布完成事件: %v", err)
		} else {
			e.closers = append(e.closers, pub.Close)
			opts.OnPrediction = func(assetID string, p inter.Prediction) {
				ev := notify.CompletionEvent{AssetID: assetID, RiskLevel: p.RiskLevel, At: p.PredictionDate.Time}
				if err := pub.Publish(ev); err != nil {
					log.Printf("%v", err)
				}
			}
		}
	}

	stub, err := backendstub.New(opts)
	if err != nil {
		return err
	}
	defer stub.Close()
	if noSeed, _ := e.fs.GetBool("no-seed"); !noSeed {
		stub.SeedDemoData()
	}
	for _, u := range backendstub.DemoUsers {
		fmt.Fprintf(e.out, "演示账号 %s / %s (%s)\n", u.Username, u.Password, viewmodel.RoleText(u.Role))
	}
	if err := stub.Start(e.ctx, e.cfg.StubAddr); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "系统正常关闭")
	return nil
}

func loginFlags(fs *pflag.FlagSet) {
	fs.StringP("password", "p", "", "密码，为空时从标准输入读取")
}

func runLogin(e *env) error {
	password, _ := e.fs.GetString("password")
	if password == "" {
		fmt.Fprint(e.out, "密码: ")
		line, err := bufio.NewReader(e.in).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("未读取到密码")
		}
		password = strings.TrimRight(line, "\r\n")
	}
	sess, err := e.console.Session.Login(e.ctx, e.arg(0), password)
	if err != nil {
		return errors.New(inter.MessageOf(err))
	}
	fmt.Fprintf(e.out, "登录成功: %s (%s)\n", sess.Username, viewmodel.RoleText(sess.Role))
	return nil
}

func runLogout(e *env) error {
	if err := e.console.Session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "已退出登录")
	return nil
}

func runWhoami(e *env) error {
	v := e.console.Viewer()
	mode := "只读"
	if access.CanMutate(v.Role) {
		mode = "可修改"
	}
	fmt.Fprintf(e.out, "%s\t%s\t%s\n", v.Username, v.RoleText(), mode)
	return nil
}

func runProfiles(e *env) error {
	if e.cfg.TokenStore != "sql" {
		return errors.New("只有 sql 令牌存储支持多个配置档")
	}
	store, err := datastore.NewTokenStoreSql(e.cfg.StateDriver, e.cfg.StateDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	names, err := store.Profiles()
	if err != nil {
		return err
	}
	current := store.WithProfile(e.cfg.Profile).Profile()
	for _, name := range names {
		mark := " "
		if name == current {
			mark = "*"
		}
		fmt.Fprintf(e.out, "%s %s\n", mark, name)
	}
	return nil
}

func runStats(e *env) error {
	c := e.console
	page := viewmodel.LoadDashboard(e.ctx, c.Assets, c.Predictions, c.Viewer())
	if err := sessionErr(e); err != nil {
		return err
	}
	if page.StatsErr != "" {
		return errors.New(page.StatsErr)
	}
	printDashboard(e.out, page)
	return nil
}

func pageFlags(fs *pflag.FlagSet) {
	fs.Int("page", 0, "页码，从 0 开始")
	fs.Int("size", viewmodel.AssetsPageSize, "每页数量")
}

func runAssets(e *env) error {
	number, _ := e.fs.GetInt("page")
	size, _ := e.fs.GetInt("size")
	res, err := e.console.Assets.ListAssets(e.ctx, number, size)
	if err != nil {
		return errors.New(inter.MessageOf(err))
	}
	printAssets(e.out, res)
	return nil
}

func assetFlags(fs *pflag.FlagSet) {
	fs.String("id", "", "资产编号")
	fs.String("name", "", "资产名称")
	fs.String("type", "", "资产类型: BRIDGE | ROAD | BUILDING | TUNNEL")
	fs.String("description", "", "描述")
	fs.String("lat", "", "纬度")
	fs.String("lon", "", "经度")
	fs.String("priority", "", "维护优先级 0-10")
}

func runAssetCreate(e *env) error {
	get := func(name string) string {
		v, _ := e.fs.GetString(name)
		return v
	}
	draft := inter.AssetDraft{
		AssetID:     get("id"),
		Name:        get("name"),
		Type:        get("type"),
		Description: get("description"),
		Latitude:    get("lat"),
		Longitude:   get("lon"),
		Priority:    get("priority"),
	}
	c := e.console
	return report(e, viewmodel.CreateAsset(e.ctx, c.Assets, c.Viewer(), draft))
}

func runAssetStatus(e *env) error {
	c := e.console
	status := inter.AssetStatus(strings.ToUpper(e.arg(1)))
	return report(e, viewmodel.UpdateAssetStatus(e.ctx, c.Assets, c.Viewer(), e.arg(0), status))
}

func windowFlags(fs *pflag.FlagSet) {
	fs.StringP("window", "w", "1h", "聚合窗口，例如 30m、1h、1d")
}

func runReadings(e *env) error {
	c := e.console
	window, _ := e.fs.GetString("window")
	page := viewmodel.LoadSensors(e.ctx, c.Assets, c.Sensors, c.Viewer(), e.arg(0), window)
	if err := sessionErr(e); err != nil {
		return err
	}
	if page.Error != "" {
		return errors.New(page.Error)
	}
	printReadings(e.out, page)
	return nil
}

func recordFlags(fs *pflag.FlagSet) {
	fs.String("asset", "", "资产编号")
	fs.String("sensor", "", "传感器编号")
	fs.String("type", "", "传感器类型")
	fs.String("value", "", "读数")
	fs.String("unit", "", "单位，为空时按类型取默认值")
}

func runRecord(e *env) error {
	get := func(name string) string {
		v, _ := e.fs.GetString(name)
		return v
	}
	draft := inter.ReadingDraft{
		AssetID:    get("asset"),
		SensorID:   get("sensor"),
		SensorType: get("type"),
		Value:      get("value"),
		Unit:       get("unit"),
	}
	return report(e, viewmodel.RecordReading(e.ctx, e.console.Sensors, e.console.Viewer(), draft))
}

func runSimulate(e *env) error {
	c := e.console
	return report(e, viewmodel.SimulateReadings(e.ctx, c.Sensors, c.Viewer(), e.arg(0)))
}

func runPredict(e *env) error {
	c := e.console
	res := c.Waiter.Trigger(e.ctx, c.Viewer(), e.arg(0))
	if err := report(e, res.Outcome); err != nil {
		return err
	}
	if res.Ready && len(res.Predictions) > 0 {
		printPredictions(e.out, res.Predictions[:1])
	}
	return nil
}

func runPredictions(e *env) error {
	c := e.console
	page := viewmodel.LoadPredictions(e.ctx, c.Assets, c.Predictions, c.Viewer(), e.arg(0))
	if err := sessionErr(e); err != nil {
		return err
	}
	if page.Error != "" {
		return errors.New(page.Error)
	}
	if len(page.Predictions) == 0 {
		fmt.Fprintln(e.out, "暂无预测数据")
		return nil
	}
	list := make([]inter.Prediction, 0, len(page.Predictions))
	for _, p := range page.Predictions {
		list = append(list, p.Prediction)
	}
	printPredictions(e.out, list)
	return nil
}

func runHighRisk(e *env) error {
	list, err := e.console.Predictions.ListHighRisk(e.ctx)
	if err != nil {
		return errors.New(inter.MessageOf(err))
	}
	if len(list) == 0 {
		fmt.Fprintln(e.out, "暂无高风险预测")
		return nil
	}
	printPredictions(e.out, list)
	return nil
}

// sessionErr 请求过程中令牌失效时会话已被销毁
func sessionErr(e *env) error {
	if e.console.Session.State() != inter.SessionAuthenticated {
		return errors.New("登录已失效，请重新登录")
	}
	return nil
}

// report 输出修改操作的结果，失败时带上逐字段的错误
func report(e *env, out viewmodel.Outcome) error {
	if out.OK {
		fmt.Fprintln(e.out, out.Message)
		return nil
	}
	if out.Unauthenticated {
		return errors.New("登录已失效，请重新登录")
	}
	if len(out.FieldErrors) == 0 {
		return errors.New(out.Message)
	}
	fields := make([]string, 0, len(out.FieldErrors))
	for f := range out.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var b strings.Builder
	b.WriteString(out.Message)
	for _, f := range fields {
		fmt.Fprintf(&b, "\n  %s: %s", f, out.FieldErrors[f])
	}
	return errors.New(b.String())
}
