package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/viewmodel"
)

// formPage 带表单回填的页面数据
type formPage struct {
	Data        interface{}
	Form        interface{}
	FieldErrors map[string]string
}

func (ws *webServer) indexHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (ws *webServer) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	page := viewmodel.LoadDashboard(r.Context(), c.Assets, c.Predictions, c.Viewer())
	if ws.sessionLost(w, r, c) {
		return
	}
	ws.render(w, r, "dashboard.html", pageData{Title: "仪表板", Active: "dashboard", Viewer: page.Viewer, Error: page.StatsErr, Page: page})
}

func (ws *webServer) assetListHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	page := viewmodel.LoadAssets(r.Context(), c.Assets, c.Viewer())
	if ws.sessionLost(w, r, c) {
		return
	}
	ws.render(w, r, "assets.html", pageData{Title: "资产管理", Active: "assets", Viewer: page.Viewer, Error: page.Error,
		Page: formPage{Data: page}})
}

func (ws *webServer) createAssetHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	draft := inter.AssetDraft{
		AssetID:     r.FormValue("assetId"),
		Name:        r.FormValue("name"),
		Type:        r.FormValue("type"),
		Description: r.FormValue("description"),
		Latitude:    r.FormValue("latitude"),
		Longitude:   r.FormValue("longitude"),
		Priority:    r.FormValue("maintenancePriority"),
	}
	out := viewmodel.CreateAsset(r.Context(), c.Assets, c.Viewer(), draft)
	if ws.sessionLost(w, r, c) {
		return
	}
	if out.OK {
		ws.redirectWithFlash(w, r, "/assets", out.Message, "")
		return
	}

	// 校验失败时回填表单，列表重新拉取
	page := viewmodel.LoadAssets(r.Context(), c.Assets, c.Viewer())
	ws.render(w, r, "assets.html", pageData{status: http.StatusUnprocessableEntity, Title: "资产管理", Active: "assets", Viewer: page.Viewer, Error: out.Message,
		Page: formPage{Data: page, Form: draft, FieldErrors: out.FieldErrors}})
}

func (ws *webServer) updateStatusHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	assetID := mux.Vars(r)["assetId"]
	status := inter.AssetStatus(strings.ToUpper(strings.TrimSpace(r.FormValue("status"))))
	out := viewmodel.UpdateAssetStatus(r.Context(), c.Assets, c.Viewer(), assetID, status)
	ws.finish(w, r, out, "/assets")
}

func sensorsPath(assetID, window string) string {
	q := url.Values{}
	if assetID != "" {
		q.Set("asset", assetID)
	}
	if window != "" {
		q.Set("window", window)
	}
	if len(q) == 0 {
		return "/sensors"
	}
	return "/sensors?" + q.Encode()
}

func (ws *webServer) sensorsHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	q := r.URL.Query()
	page := viewmodel.LoadSensors(r.Context(), c.Assets, c.Sensors, c.Viewer(), q.Get("asset"), q.Get("window"))
	if ws.sessionLost(w, r, c) {
		return
	}
	ws.render(w, r, "sensors.html", pageData{Title: "传感器数据", Active: "sensors", Viewer: page.Viewer, Error: page.Error,
		Page: formPage{Data: page}})
}

func (ws *webServer) recordReadingHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	draft := inter.ReadingDraft{
		AssetID:    r.FormValue("assetId"),
		SensorID:   r.FormValue("sensorId"),
		SensorType: r.FormValue("sensorType"),
		Value:      r.FormValue("value"),
		Unit:       r.FormValue("unit"),
	}
	window := r.FormValue("window")
	out := viewmodel.RecordReading(r.Context(), c.Sensors, c.Viewer(), draft)
	if ws.sessionLost(w, r, c) {
		return
	}
	if out.OK {
		ws.redirectWithFlash(w, r, sensorsPath(draft.AssetID, window), out.Message, "")
		return
	}

	page := viewmodel.LoadSensors(r.Context(), c.Assets, c.Sensors, c.Viewer(), draft.AssetID, window)
	ws.render(w, r, "sensors.html", pageData{status: http.StatusUnprocessableEntity, Title: "传感器数据", Active: "sensors", Viewer: page.Viewer, Error: out.Message,
		Page: formPage{Data: page, Form: draft, FieldErrors: out.FieldErrors}})
}

func (ws *webServer) simulateHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	assetID := r.FormValue("assetId")
	out := viewmodel.SimulateReadings(r.Context(), c.Sensors, c.Viewer(), assetID)
	ws.finish(w, r, out, sensorsPath(assetID, r.FormValue("window")))
}

func predictionsPath(assetID string) string {
	if assetID == "" {
		return "/predictions"
	}
	return "/predictions?" + url.Values{"asset": {assetID}}.Encode()
}

func (ws *webServer) predictionsHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	page := viewmodel.LoadPredictions(r.Context(), c.Assets, c.Predictions, c.Viewer(), r.URL.Query().Get("asset"))
	if ws.sessionLost(w, r, c) {
		return
	}
	ws.render(w, r, "predictions.html", pageData{Title: "预测分析", Active: "predictions", Viewer: page.Viewer, Error: page.Error, Page: page})
}

// triggerHandler 触发预测后等待结果，超时按"已提交"提示
func (ws *webServer) triggerHandler(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	assetID := r.FormValue("assetId")
	res := c.Waiter.Trigger(r.Context(), c.Viewer(), assetID)
	ws.finish(w, r, res.Outcome, predictionsPath(assetID))
}

// finish 修改类操作的统一收尾
func (ws *webServer) finish(w http.ResponseWriter, r *http.Request, out viewmodel.Outcome, path string) {
	c := consoleFrom(r)
	if ws.sessionLost(w, r, c) {
		return
	}
	if out.OK {
		ws.redirectWithFlash(w, r, path, out.Message, "")
		return
	}
	ws.redirectWithFlash(w, r, path, "", out.Message)
}
